package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agrisetu/agrisetu-api/internal/models"
)

// PaymentRepository provides database access for payments and the gateway
// transaction mirror.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment together with its gateway transaction row.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment, txn *models.PayuTransaction) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	txn.PaymentID = payment.ID
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create payment: %w", err)
	}
	defer tx.Rollback()

	const insertPayment = `INSERT INTO payments (id, user_id, course_id, consultation_id, amount, currency, status, method, transaction_id, created_at, updated_at) VALUES (:id, :user_id, :course_id, :consultation_id, :amount, :currency, :status, :method, :transaction_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	const insertTxn = `INSERT INTO payu_transactions (id, payment_id, txnid, amount, productinfo, firstname, email, status, unmapped_status, mode, net_amount, error_code, error_message, hash, created_at, updated_at) VALUES (:id, :payment_id, :txnid, :amount, :productinfo, :firstname, :email, :status, :unmapped_status, :mode, :net_amount, :error_code, :error_message, :hash, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertTxn, txn); err != nil {
		return fmt.Errorf("create payu transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create payment: %w", err)
	}
	return nil
}

// FindByTransactionID returns the payment with the given gateway txnid.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	const query = `SELECT id, user_id, course_id, consultation_id, amount, currency, status, method, transaction_id, created_at, updated_at FROM payments WHERE transaction_id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, txnID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by txnid: %w", err)
	}
	return &payment, nil
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, user_id, course_id, consultation_id, amount, currency, status, method, transaction_id, created_at, updated_at FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// Settle records the gateway outcome for a payment: the payment row status
// and the gateway sub-fields mirrored from the callback.
func (r *PaymentRepository) Settle(ctx context.Context, paymentID string, status models.PaymentStatus, method string, txn *models.PayuTransaction) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle payment: %w", err)
	}
	defer tx.Rollback()

	const updatePayment = `UPDATE payments SET status = $2, method = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updatePayment, paymentID, status, method, now); err != nil {
		return fmt.Errorf("settle payment: %w", err)
	}

	const updateTxn = `UPDATE payu_transactions SET status = $2, unmapped_status = $3, mode = $4, net_amount = $5, error_code = $6, error_message = $7, hash = $8, updated_at = $9 WHERE payment_id = $1`
	if _, err := tx.ExecContext(ctx, updateTxn, paymentID, txn.Status, txn.UnmappedStatus, txn.Mode, txn.NetAmount, txn.ErrorCode, txn.ErrorMessage, txn.Hash, now); err != nil {
		return fmt.Errorf("settle payu transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle payment: %w", err)
	}
	return nil
}

// ListByUser returns the caller's payment history joined with what each
// payment paid for, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.PaymentRecord, error) {
	const query = `SELECT p.id, p.user_id, p.course_id, p.consultation_id, p.amount, p.currency, p.status, p.method, p.transaction_id, p.created_at, p.updated_at, COALESCE(co.title, 'Consultation with ' || COALESCE(iu.full_name, 'instructor')) AS item_title FROM payments p LEFT JOIN courses co ON co.id = p.course_id LEFT JOIN consultations c ON c.id = p.consultation_id LEFT JOIN instructor_profiles ip ON ip.id = c.instructor_id LEFT JOIN users iu ON iu.id = ip.user_id WHERE p.user_id = $1 ORDER BY p.created_at DESC`
	var records []models.PaymentRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list payments by user: %w", err)
	}
	return records, nil
}

// FindTransactionByPaymentID returns the gateway mirror row for a payment.
func (r *PaymentRepository) FindTransactionByPaymentID(ctx context.Context, paymentID string) (*models.PayuTransaction, error) {
	const query = `SELECT id, payment_id, txnid, amount, productinfo, firstname, email, status, unmapped_status, mode, net_amount, error_code, error_message, hash, created_at, updated_at FROM payu_transactions WHERE payment_id = $1 LIMIT 1`
	var txn models.PayuTransaction
	if err := r.db.GetContext(ctx, &txn, query, paymentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payu transaction: %w", err)
	}
	return &txn, nil
}

// SumCompletedByInstructor totals settled consultation earnings for an
// instructor.
func (r *PaymentRepository) SumCompletedByInstructor(ctx context.Context, instructorID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(p.amount), 0) FROM payments p JOIN consultations c ON c.id = p.consultation_id WHERE c.instructor_id = $1 AND p.status = 'COMPLETED'`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, instructorID); err != nil {
		return 0, fmt.Errorf("sum instructor earnings: %w", err)
	}
	return total, nil
}
