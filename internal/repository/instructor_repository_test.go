package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/models"
)

func TestReplaceSlotsSwapsAtomically(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInstructorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_slots WHERE instructor_id = $1")).
		WithArgs("i1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO availability_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	slots := []models.AvailabilitySlot{
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00"},
		{DayOfWeek: 4, StartTime: "14:00", EndTime: "17:00"},
	}
	err := repo.ReplaceSlots(context.Background(), "i1", slots)
	require.NoError(t, err)
	assert.Equal(t, "i1", slots[0].InstructorID)
	assert.NotEmpty(t, slots[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSlotsOrdered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInstructorRepository(db)

	rows := sqlmock.NewRows([]string{"id", "instructor_id", "day_of_week", "start_time", "end_time"}).
		AddRow("s1", "i1", 2, "09:00", "12:00").
		AddRow("s2", "i1", 4, "14:00", "17:00")
	mock.ExpectQuery("SELECT id, instructor_id, day_of_week, start_time, end_time FROM availability_slots").
		WithArgs("i1").
		WillReturnRows(rows)

	slots, err := repo.FindSlots(context.Background(), "i1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 2, slots[0].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}
