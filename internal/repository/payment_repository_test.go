package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisetu/agrisetu-api/internal/models"
)

func TestCreatePaymentTransactional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payu_transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	consultationID := "c1"
	payment := &models.Payment{
		UserID:         "u1",
		ConsultationID: &consultationID,
		Amount:         300,
		Currency:       "INR",
		Status:         models.PaymentInitiated,
		TransactionID:  "CONSULTATION_1700000000000",
	}
	txn := &models.PayuTransaction{
		TxnID:       payment.TransactionID,
		Amount:      "300.00",
		ProductInfo: "Consultation booking",
		FirstName:   "User",
		Email:       "user@example.com",
		Status:      "initiated",
		Hash:        "deadbeef",
	}
	err := repo.Create(context.Background(), payment, txn)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, txn.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTransactionIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT id, user_id").WithArgs("COURSE_1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByTransactionID(context.Background(), "COURSE_1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleUpdatesBothRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2")).
		WithArgs("p1", string(models.PaymentCompleted), "UPI", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payu_transactions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Settle(context.Background(), "p1", models.PaymentCompleted, "UPI", &models.PayuTransaction{Status: "success", Mode: "UPI", NetAmount: "300.00", Hash: "abc"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumCompletedByInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(1200.50)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(p.amount), 0) FROM payments p")).
		WithArgs("i1").
		WillReturnRows(rows)

	total, err := repo.SumCompletedByInstructor(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, 1200.50, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserPaymentHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	courseID := "co1"
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "consultation_id", "amount", "currency", "status", "method", "transaction_id", "created_at", "updated_at", "item_title"}).
		AddRow("p1", "u1", courseID, nil, 499.0, "INR", string(models.PaymentCompleted), "CARD", "COURSE_1700000000000", now, now, "Organic Farming Basics")
	mock.ExpectQuery("SELECT p.id, p.user_id").WithArgs("u1").WillReturnRows(rows)

	records, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Organic Farming Basics", records[0].ItemTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
