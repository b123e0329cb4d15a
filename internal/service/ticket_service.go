package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

type ticketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	ListByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	ListAll(ctx context.Context) ([]models.TicketDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error
}

// CreateTicketRequest is the payload for raising a support ticket.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// UpdateTicketStatusRequest is the admin triage payload.
type UpdateTicketStatusRequest struct {
	Status models.TicketStatus `json:"status" validate:"required,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

// TicketService owns support tickets.
type TicketService struct {
	repo      ticketRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTicketService constructs a TicketService instance.
func NewTicketService(repo ticketRepository, validate *validator.Validate, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TicketService{repo: repo, validator: validate, logger: logger}
}

// Create raises a new OPEN ticket for the caller.
func (s *TicketService) Create(ctx context.Context, userID string, req CreateTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket payload")
	}

	ticket := &models.Ticket{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TicketOpen,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}
	return ticket, nil
}

// ListForUser returns the caller's tickets.
func (s *TicketService) ListForUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// ListAll returns every ticket with the reporting user, for admin triage.
func (s *TicketService) ListAll(ctx context.Context) ([]models.TicketDetail, error) {
	tickets, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// UpdateStatus moves a ticket to a new triage status.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, req UpdateTicketStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket status payload")
	}

	if err := s.repo.UpdateStatus(ctx, ticketID, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ticket status")
	}
	return nil
}
