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

// TicketRepository provides database access for support tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new instance of TicketRepository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	const query = `INSERT INTO tickets (id, user_id, title, description, status, created_at) VALUES (:id, :user_id, :title, :description, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// ListByUser returns a user's tickets, newest first.
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	const query = `SELECT id, user_id, title, description, status, created_at FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, userID); err != nil {
		return nil, fmt.Errorf("list tickets by user: %w", err)
	}
	return tickets, nil
}

// ListAll returns every ticket joined with the reporting user, newest first.
func (r *TicketRepository) ListAll(ctx context.Context) ([]models.TicketDetail, error) {
	const query = `SELECT t.id, t.user_id, t.title, t.description, t.status, t.created_at,
		u.full_name AS user_name, u.email AS user_email
		FROM tickets t JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC`
	var tickets []models.TicketDetail
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("list all tickets: %w", err)
	}
	return tickets, nil
}

// UpdateStatus moves a ticket to a new status. Returns sql.ErrNoRows when
// the ticket does not exist.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountOpen returns the number of unresolved tickets.
func (r *TicketRepository) CountOpen(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tickets WHERE status IN ('OPEN', 'IN_PROGRESS')`); err != nil {
		return 0, fmt.Errorf("count open tickets: %w", err)
	}
	return total, nil
}
