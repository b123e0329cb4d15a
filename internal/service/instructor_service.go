package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
)

const instructorCatalogCacheKey = "catalog:instructors"

type instructorRepository interface {
	FindProfileByID(ctx context.Context, id string) (*models.InstructorProfile, error)
	FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error)
	UpdateProfile(ctx context.Context, profile *models.InstructorProfile) error
	ListProfiles(ctx context.Context) ([]models.InstructorProfile, map[string]models.UserInfo, error)
	ReplaceSlots(ctx context.Context, instructorID string, slots []models.AvailabilitySlot) error
	FindSlots(ctx context.Context, instructorID string) ([]models.AvailabilitySlot, error)
	CreateFreeResource(ctx context.Context, resource *models.FreeResource) error
	ListFreeResources(ctx context.Context, instructorID string) ([]models.FreeResource, error)
}

// UpdateProfileRequest is the payload for editing an instructor profile.
type UpdateProfileRequest struct {
	Bio        string   `json:"bio" validate:"max=2000"`
	Expertise  []string `json:"expertise" validate:"dive,min=1,max=100"`
	HourlyRate float64  `json:"hourly_rate" validate:"gte=0"`
}

// SlotRequest is one weekly availability window.
type SlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ReplaceAvailabilityRequest swaps the full weekly schedule.
type ReplaceAvailabilityRequest struct {
	Slots []SlotRequest `json:"slots" validate:"dive"`
}

// CreateFreeResourceRequest is the payload for sharing a free learning link.
type CreateFreeResourceRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
}

// InstructorService serves the public instructor catalog and the
// instructor-side profile management.
type InstructorService struct {
	repo      instructorRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs an InstructorService instance.
func NewInstructorService(repo instructorRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InstructorService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Catalog returns the public instructor listing, cached when caching is on.
func (s *InstructorService) Catalog(ctx context.Context) ([]models.InstructorListing, error) {
	var cached []models.InstructorListing
	if hit, _ := s.cache.Get(ctx, instructorCatalogCacheKey, &cached); hit {
		return cached, nil
	}

	listings, err := s.buildCatalog(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, instructorCatalogCacheKey, listings, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache instructor catalog", zap.Error(err))
	}
	return listings, nil
}

// Detail returns one instructor's public listing.
func (s *InstructorService) Detail(ctx context.Context, instructorID string) (*models.InstructorListing, error) {
	profile, err := s.repo.FindProfileByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	// Reuse the catalog join for the user fields rather than a second
	// query shape.
	listings, err := s.buildCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		if listings[i].Profile.ID == profile.ID {
			return &listings[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
}

// UpdateProfile edits the caller's own profile and invalidates the catalog.
func (s *InstructorService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.InstructorProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	profile.Bio = req.Bio
	profile.Expertise = pq.StringArray(req.Expertise)
	profile.HourlyRate = req.HourlyRate
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor profile")
	}

	if err := s.cache.Invalidate(ctx, instructorCatalogCacheKey); err != nil {
		s.logger.Warn("failed to invalidate instructor catalog cache", zap.Error(err))
	}
	return profile, nil
}

// ReplaceAvailability swaps the caller's weekly schedule and invalidates
// the catalog.
func (s *InstructorService) ReplaceAvailability(ctx context.Context, userID string, req ReplaceAvailabilityRequest) ([]models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	slots := make([]models.AvailabilitySlot, 0, len(req.Slots))
	for _, slot := range req.Slots {
		start, okStart := parseClock(slot.StartTime)
		end, okEnd := parseClock(slot.EndTime)
		if !okStart || !okEnd {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot times must be HH:MM")
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot end must be after start")
		}
		slots = append(slots, models.AvailabilitySlot{
			DayOfWeek: slot.DayOfWeek,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}

	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	if err := s.repo.ReplaceSlots(ctx, profile.ID, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}

	if err := s.cache.Invalidate(ctx, instructorCatalogCacheKey); err != nil {
		s.logger.Warn("failed to invalidate instructor catalog cache", zap.Error(err))
	}
	return slots, nil
}

// ShareFreeResource publishes a free learning link under the caller's
// instructor profile.
func (s *InstructorService) ShareFreeResource(ctx context.Context, userID string, req CreateFreeResourceRequest) (*models.FreeResource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid free resource payload")
	}

	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	resource := &models.FreeResource{
		InstructorID: profile.ID,
		Title:        req.Title,
		Description:  req.Description,
		URL:          req.URL,
	}
	if err := s.repo.CreateFreeResource(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create free resource")
	}
	return resource, nil
}

// FreeResources lists the caller's shared learning links.
func (s *InstructorService) FreeResources(ctx context.Context, userID string) ([]models.FreeResource, error) {
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	resources, err := s.repo.ListFreeResources(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list free resources")
	}
	return resources, nil
}

func (s *InstructorService) buildCatalog(ctx context.Context) ([]models.InstructorListing, error) {
	profiles, users, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}

	listings := make([]models.InstructorListing, 0, len(profiles))
	for _, profile := range profiles {
		slots, err := s.repo.FindSlots(ctx, profile.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
		info := users[profile.UserID]
		listings = append(listings, models.InstructorListing{
			Profile: profile,
			Name:    info.FullName,
			Email:   info.Email,
			Slots:   slots,
		})
	}
	return listings, nil
}
