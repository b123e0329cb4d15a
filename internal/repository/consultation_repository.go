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

// ErrStatusConflict reports a lost compare-and-set on a consultation row:
// between the read and the write somebody else moved the status.
var ErrStatusConflict = fmt.Errorf("consultation status changed concurrently")

// ConsultationRepository provides database access for consultations.
type ConsultationRepository struct {
	db *sqlx.DB
}

// NewConsultationRepository creates a new instance of ConsultationRepository.
func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Create inserts a new consultation.
func (r *ConsultationRepository) Create(ctx context.Context, c *models.Consultation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	const query = `INSERT INTO consultations (id, user_id, instructor_id, scheduled_at, duration_hours, price, notes, status, meet_link, created_at, updated_at) VALUES (:id, :user_id, :instructor_id, :scheduled_at, :duration_hours, :price, :notes, :status, :meet_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}
	return nil
}

// FindByID returns a consultation by identifier.
func (r *ConsultationRepository) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	const query = `SELECT id, user_id, instructor_id, scheduled_at, duration_hours, price, notes, status, meet_link, created_at, updated_at FROM consultations WHERE id = $1 LIMIT 1`
	var c models.Consultation
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find consultation: %w", err)
	}
	return &c, nil
}

// UpdateStatus moves a consultation from one status to another. The write
// is conditional on the previously read status; a zero-row result means a
// concurrent writer won and the caller must re-read.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, id string, from, to models.ConsultationStatus, meetLink string) error {
	const query = `UPDATE consultations SET status = $3, meet_link = CASE WHEN $4 <> '' THEN $4 ELSE meet_link END, updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, meetLink, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update consultation status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consultation status rows: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListByUser returns a user's consultations joined with instructor identity
// and the latest payment status, newest first.
func (r *ConsultationRepository) ListByUser(ctx context.Context, userID string) ([]models.ConsultationDetail, error) {
	const query = `SELECT c.id, c.user_id, c.instructor_id, c.scheduled_at, c.duration_hours, c.price, c.notes, c.status, c.meet_link, c.created_at, c.updated_at, u.full_name AS counterparty_name, u.email AS counterparty_email, p.status AS payment_status FROM consultations c JOIN instructor_profiles ip ON ip.id = c.instructor_id JOIN users u ON u.id = ip.user_id LEFT JOIN payments p ON p.consultation_id = c.id WHERE c.user_id = $1 ORDER BY c.created_at DESC`
	var list []models.ConsultationDetail
	if err := r.db.SelectContext(ctx, &list, query, userID); err != nil {
		return nil, fmt.Errorf("list consultations by user: %w", err)
	}
	return list, nil
}

// ListByInstructor returns an instructor's consultations joined with the
// booking user's identity and payment status, newest first.
func (r *ConsultationRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.ConsultationDetail, error) {
	const query = `SELECT c.id, c.user_id, c.instructor_id, c.scheduled_at, c.duration_hours, c.price, c.notes, c.status, c.meet_link, c.created_at, c.updated_at, u.full_name AS counterparty_name, u.email AS counterparty_email, p.status AS payment_status FROM consultations c JOIN users u ON u.id = c.user_id LEFT JOIN payments p ON p.consultation_id = c.id WHERE c.instructor_id = $1 ORDER BY c.created_at DESC`
	var list []models.ConsultationDetail
	if err := r.db.SelectContext(ctx, &list, query, instructorID); err != nil {
		return nil, fmt.Errorf("list consultations by instructor: %w", err)
	}
	return list, nil
}

// CountByInstructor returns consultation counts per status for an instructor.
func (r *ConsultationRepository) CountByInstructor(ctx context.Context, instructorID string) (map[models.ConsultationStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM consultations WHERE instructor_id = $1 GROUP BY status`
	rows := []struct {
		Status models.ConsultationStatus `db:"status"`
		Count  int                       `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("count consultations by instructor: %w", err)
	}
	counts := make(map[models.ConsultationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountAll returns the total number of consultations.
func (r *ConsultationRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM consultations`); err != nil {
		return 0, fmt.Errorf("count consultations: %w", err)
	}
	return total, nil
}
