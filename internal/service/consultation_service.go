package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/repository"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

type consultationRepository interface {
	Create(ctx context.Context, c *models.Consultation) error
	FindByID(ctx context.Context, id string) (*models.Consultation, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ConsultationStatus, meetLink string) error
	ListByUser(ctx context.Context, userID string) ([]models.ConsultationDetail, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.ConsultationDetail, error)
}

type consultationInstructorRepository interface {
	FindProfileByID(ctx context.Context, id string) (*models.InstructorProfile, error)
	FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error)
	FindSlots(ctx context.Context, instructorID string) ([]models.AvailabilitySlot, error)
}

type consultationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type meetingCreator interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (string, error)
}

// BookConsultationRequest is the payload for booking a consultation.
type BookConsultationRequest struct {
	InstructorID  string    `json:"instructor_id" validate:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1,max=8"`
	Notes         string    `json:"notes"`
}

// ConsultationActionRequest addresses one consultation for a status change.
type ConsultationActionRequest struct {
	ConsultationID string `json:"consultation_id" validate:"required"`
}

// ConsultationService orchestrates the consultation lifecycle.
type ConsultationService struct {
	consultations consultationRepository
	instructors   consultationInstructorRepository
	users         consultationUserRepository
	calendar      meetingCreator
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewConsultationService constructs a ConsultationService instance.
func NewConsultationService(consultations consultationRepository, instructors consultationInstructorRepository, users consultationUserRepository, calendar meetingCreator, validate *validator.Validate, logger *zap.Logger) *ConsultationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConsultationService{
		consultations: consultations,
		instructors:   instructors,
		users:         users,
		calendar:      calendar,
		validator:     validate,
		logger:        logger,
	}
}

// Book creates a PENDING consultation against a declared availability slot.
// The price is always hourly_rate times duration, computed server side.
func (s *ConsultationService) Book(ctx context.Context, userID string, req BookConsultationRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !req.ScheduledAt.After(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scheduled time must be in the future")
	}

	profile, err := s.instructors.FindProfileByID(ctx, req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	slots, err := s.instructors.FindSlots(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	if !slotCovers(slots, req.ScheduledAt) {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "instructor is not available at the requested time")
	}

	consultation := &models.Consultation{
		UserID:        userID,
		InstructorID:  profile.ID,
		ScheduledAt:   req.ScheduledAt.UTC(),
		DurationHours: req.DurationHours,
		Price:         profile.HourlyRate * float64(req.DurationHours),
		Notes:         req.Notes,
		Status:        models.ConsultationPending,
	}
	if err := s.consultations.Create(ctx, consultation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create consultation")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionConsultationBook,
		Resource:   "consultation",
		ResourceID: &consultation.ID,
		NewValues:  []byte(fmt.Sprintf(`{"instructor_id":%q,"price":%g}`, profile.ID, consultation.Price)),
	}); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}

	return consultation, nil
}

// Approve moves a PENDING consultation to APPROVED. The meet link is created
// first; the status only changes once a non-empty link came back, so an
// APPROVED consultation always carries a meeting.
func (s *ConsultationService) Approve(ctx context.Context, instructorUserID string, req ConsultationActionRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approve payload")
	}

	consultation, profile, err := s.ownedByInstructor(ctx, instructorUserID, req.ConsultationID)
	if err != nil {
		return nil, err
	}

	if _, err := models.ApplyEvent(consultation.Status, models.EventApprove); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, err.Error())
	}

	user, err := s.users.FindByID(ctx, consultation.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking user")
	}
	instructorUser, err := s.users.FindByID(ctx, profile.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor user")
	}

	link, err := s.calendar.CreateMeeting(ctx, MeetingRequest{
		Summary:     fmt.Sprintf("AgriSetu consultation with %s", user.FullName),
		Description: consultation.Notes,
		Start:       consultation.ScheduledAt,
		End:         consultation.ScheduledAt.Add(time.Duration(consultation.DurationHours) * time.Hour),
		Attendees:   []string{user.Email, instructorUser.Email},
	})
	if err != nil {
		return nil, err
	}

	if err := s.consultations.UpdateStatus(ctx, consultation.ID, models.ConsultationPending, models.ConsultationApproved, link); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "consultation was updated concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve consultation")
	}

	consultation.Status = models.ConsultationApproved
	consultation.MeetLink = link

	s.auditStatusChange(ctx, instructorUserID, consultation.ID, models.ConsultationApproved)
	return consultation, nil
}

// Reject moves a PENDING consultation to REJECTED. Rejecting anything else,
// including an already rejected one, fails with INVALID_STATE.
func (s *ConsultationService) Reject(ctx context.Context, instructorUserID string, req ConsultationActionRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reject payload")
	}

	consultation, _, err := s.ownedByInstructor(ctx, instructorUserID, req.ConsultationID)
	if err != nil {
		return nil, err
	}

	if _, err := models.ApplyEvent(consultation.Status, models.EventReject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, err.Error())
	}

	if err := s.consultations.UpdateStatus(ctx, consultation.ID, models.ConsultationPending, models.ConsultationRejected, ""); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "consultation was updated concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject consultation")
	}

	consultation.Status = models.ConsultationRejected
	s.auditStatusChange(ctx, instructorUserID, consultation.ID, models.ConsultationRejected)
	return consultation, nil
}

// Start moves an APPROVED consultation to IN_PROGRESS. Only the booking
// user may start, and only after the payment callback approved it.
func (s *ConsultationService) Start(ctx context.Context, userID, consultationID string) (*models.Consultation, error) {
	consultation, err := s.consultations.FindByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultation")
	}
	if consultation.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation does not belong to user")
	}

	if _, err := models.ApplyEvent(consultation.Status, models.EventStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, err.Error())
	}

	if err := s.consultations.UpdateStatus(ctx, consultation.ID, models.ConsultationApproved, models.ConsultationInProgress, ""); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "consultation was updated concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start consultation")
	}

	consultation.Status = models.ConsultationInProgress
	s.auditStatusChange(ctx, userID, consultation.ID, models.ConsultationInProgress)
	return consultation, nil
}

// ListForUser returns the caller's consultations with instructor identity
// and payment status.
func (s *ConsultationService) ListForUser(ctx context.Context, userID string) ([]models.ConsultationDetail, error) {
	list, err := s.consultations.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consultations")
	}
	return list, nil
}

// ListForInstructor returns the consultations booked against the caller's
// instructor profile.
func (s *ConsultationService) ListForInstructor(ctx context.Context, instructorUserID string) ([]models.ConsultationDetail, error) {
	profile, err := s.instructors.FindProfileByUserID(ctx, instructorUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	list, err := s.consultations.ListByInstructor(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consultations")
	}
	return list, nil
}

func (s *ConsultationService) ownedByInstructor(ctx context.Context, instructorUserID, consultationID string) (*models.Consultation, *models.InstructorProfile, error) {
	consultation, err := s.consultations.FindByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultation")
	}

	profile, err := s.instructors.FindProfileByUserID(ctx, instructorUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no instructor profile")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	if consultation.InstructorID != profile.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another instructor")
	}
	return consultation, profile, nil
}

func (s *ConsultationService) auditStatusChange(ctx context.Context, actorID, consultationID string, status models.ConsultationStatus) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionConsultationStatus,
		Resource:   "consultation",
		ResourceID: &consultationID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
	}); err != nil {
		s.logger.Warn("failed to record consultation audit log", zap.Error(err))
	}
}

// slotCovers reports whether any declared weekly slot contains the requested
// start time. Only the start is checked; a session may run past the slot end.
// Slot times are "HH:MM" local to the declared day.
func slotCovers(slots []models.AvailabilitySlot, scheduledAt time.Time) bool {
	day := int(scheduledAt.Weekday())
	startMin := scheduledAt.Hour()*60 + scheduledAt.Minute()

	for _, slot := range slots {
		if slot.DayOfWeek != day {
			continue
		}
		slotStart, okStart := parseClock(slot.StartTime)
		slotEnd, okEnd := parseClock(slot.EndTime)
		if !okStart || !okEnd {
			continue
		}
		if startMin >= slotStart && startMin < slotEnd {
			return true
		}
	}
	return false
}

func parseClock(raw string) (int, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
