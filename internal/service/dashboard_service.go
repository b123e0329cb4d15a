package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

type dashboardUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type dashboardCourseRepository interface {
	ListEnrollments(ctx context.Context, userID string) ([]models.CourseListing, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
	CountAll(ctx context.Context) (int, error)
}

type dashboardConsultationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.ConsultationDetail, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.ConsultationDetail, error)
	CountByInstructor(ctx context.Context, instructorID string) (map[models.ConsultationStatus]int, error)
	CountAll(ctx context.Context) (int, error)
}

type dashboardPaymentRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.PaymentRecord, error)
	SumCompletedByInstructor(ctx context.Context, instructorID string) (float64, error)
}

type dashboardTicketRepository interface {
	CountOpen(ctx context.Context) (int, error)
}

type dashboardInstructorRepository interface {
	FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error)
}

type dashboardCredentialRepository interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// UserDashboard aggregates everything the user-facing dashboard shows.
type UserDashboard struct {
	Profile       models.UserInfo             `json:"profile"`
	Enrollments   []models.CourseListing      `json:"enrollments"`
	Consultations []models.ConsultationDetail `json:"consultations"`
	Payments      []models.PaymentRecord      `json:"payments"`
}

// InstructorDashboard aggregates the instructor-facing dashboard.
type InstructorDashboard struct {
	Profile       models.InstructorProfile              `json:"profile"`
	Courses       []models.Course                       `json:"courses"`
	Consultations []models.ConsultationDetail           `json:"consultations"`
	StatusCounts  map[models.ConsultationStatus]int     `json:"status_counts"`
	Earnings      float64                               `json:"earnings"`
}

// AdminDashboard aggregates platform-wide counters for the admin view.
type AdminDashboard struct {
	UsersByRole       map[models.UserRole]int `json:"users_by_role"`
	Courses           int                     `json:"courses"`
	Consultations     int                     `json:"consultations"`
	OpenTickets       int                     `json:"open_tickets"`
	CalendarConnected bool                    `json:"calendar_connected"`
	System            models.SystemMetrics    `json:"system"`
}

// CreateUserRequest is the admin payload for provisioning an account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=USER INSTRUCTOR ADMIN"`
}

// DashboardService aggregates role-scoped dashboards.
type DashboardService struct {
	users         dashboardUserRepository
	courses       dashboardCourseRepository
	consultations dashboardConsultationRepository
	payments      dashboardPaymentRepository
	tickets       dashboardTicketRepository
	instructors   dashboardInstructorRepository
	credentials   dashboardCredentialRepository
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(users dashboardUserRepository, courses dashboardCourseRepository, consultations dashboardConsultationRepository, payments dashboardPaymentRepository, tickets dashboardTicketRepository, instructors dashboardInstructorRepository, credentials dashboardCredentialRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DashboardService{
		users:         users,
		courses:       courses,
		consultations: consultations,
		payments:      payments,
		tickets:       tickets,
		instructors:   instructors,
		credentials:   credentials,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// ForUser builds the user dashboard.
func (s *DashboardService) ForUser(ctx context.Context, userID string) (*UserDashboard, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	start := time.Now()
	enrollments, err := s.courses.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	consultations, err := s.consultations.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultations")
	}
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	s.metrics.ObserveDBQuery("dashboard_user", time.Since(start))

	return &UserDashboard{
		Profile: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
			Language: user.Language,
		},
		Enrollments:   enrollments,
		Consultations: consultations,
		Payments:      payments,
	}, nil
}

// ForInstructor builds the instructor dashboard.
func (s *DashboardService) ForInstructor(ctx context.Context, userID string) (*InstructorDashboard, error) {
	profile, err := s.instructors.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	start := time.Now()
	courses, err := s.courses.ListByInstructor(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	consultations, err := s.consultations.ListByInstructor(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultations")
	}
	counts, err := s.consultations.CountByInstructor(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count consultations")
	}
	earnings, err := s.payments.SumCompletedByInstructor(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total earnings")
	}
	s.metrics.ObserveDBQuery("dashboard_instructor", time.Since(start))

	return &InstructorDashboard{
		Profile:       *profile,
		Courses:       courses,
		Consultations: consultations,
		StatusCounts:  counts,
		Earnings:      earnings,
	}, nil
}

// ForAdmin builds the admin dashboard.
func (s *DashboardService) ForAdmin(ctx context.Context) (*AdminDashboard, error) {
	start := time.Now()
	usersByRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	courseCount, err := s.courses.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	consultationCount, err := s.consultations.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count consultations")
	}
	openTickets, err := s.tickets.CountOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count tickets")
	}
	s.metrics.ObserveDBQuery("dashboard_admin", time.Since(start))
	connected, err := s.credentials.Exists(ctx, models.CredentialGoogleRefreshToken)
	if err != nil {
		s.logger.Warn("failed to check calendar credentials", zap.Error(err))
	}

	return &AdminDashboard{
		UsersByRole:       usersByRole,
		Courses:           courseCount,
		Consultations:     consultationCount,
		OpenTickets:       openTickets,
		CalendarConnected: connected,
		System:            s.metrics.Snapshot(),
	}, nil
}

// ListUsers returns users for the admin view.
func (s *DashboardService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// CreateUser provisions an account on behalf of an admin.
func (s *DashboardService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Language:     models.LanguageEnglish,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}
