package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/models"
)

func TestCreateConsultation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec("INSERT INTO consultations").WillReturnResult(sqlmock.NewResult(1, 1))

	c := &models.Consultation{
		UserID:        "u1",
		InstructorID:  "i1",
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		DurationHours: 2,
		Price:         300,
		Status:        models.ConsultationPending,
	}
	err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consultations SET status = $3")).
		WithArgs("c1", string(models.ConsultationPending), string(models.ConsultationApproved), "https://meet.google.com/abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "c1", models.ConsultationPending, models.ConsultationApproved, "https://meet.google.com/abc")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consultations SET status = $3")).
		WithArgs("c1", string(models.ConsultationPending), string(models.ConsultationRejected), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "c1", models.ConsultationPending, models.ConsultationRejected, "")
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserJoinsPaymentStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	now := time.Now()
	status := "COMPLETED"
	rows := sqlmock.NewRows([]string{"id", "user_id", "instructor_id", "scheduled_at", "duration_hours", "price", "notes", "status", "meet_link", "created_at", "updated_at", "counterparty_name", "counterparty_email", "payment_status"}).
		AddRow("c1", "u1", "i1", now, 2, 300.0, "", string(models.ConsultationApproved), "https://meet.google.com/abc", now, now, "Instructor", "inst@example.com", status)
	mock.ExpectQuery("SELECT c.id, c.user_id").WithArgs("u1").WillReturnRows(rows)

	list, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Instructor", list[0].CounterpartyName)
	require.NotNil(t, list[0].PaymentStatus)
	assert.Equal(t, "COMPLETED", *list[0].PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
