package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agrisetu/agrisetu-api/internal/models"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/storage"
)

const courseCatalogCacheKey = "catalog:courses"

type courseRepository interface {
	Create(ctx context.Context, course *models.Course, materials []models.CourseMaterial) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.CourseListing, error)
	FindMaterials(ctx context.Context, courseID string) ([]models.CourseMaterial, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	Rate(ctx context.Context, rating *models.CourseRating) error
}

type courseInstructorRepository interface {
	FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error)
}

type courseAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type translationEnqueuer interface {
	EnqueueCourse(courseID string) error
}

// MaterialInput is one supplementary item in an upload.
type MaterialInput struct {
	Title   string `json:"title" validate:"required"`
	Type    string `json:"type" validate:"required"`
	Content string `json:"content"`
}

// UploadCourseInput carries the multipart upload after handler decoding.
// VideoFile and AudioFile are nil when the course links external video.
type UploadCourseInput struct {
	Title         string             `json:"title" validate:"required"`
	Description   string             `json:"description" validate:"required"`
	Price         float64            `json:"price" validate:"gte=0"`
	Language      models.Language    `json:"language" validate:"omitempty,oneof=ENGLISH HINDI"`
	VideoSource   models.VideoSource `json:"video_source" validate:"required,oneof=UPLOADED YOUTUBE VIMEO"`
	VideoURL      string             `json:"video_url"`
	Materials     []MaterialInput    `json:"materials" validate:"dive"`
	VideoFile     io.Reader          `json:"-"`
	VideoFileName string             `json:"-"`
	AudioFile     io.Reader          `json:"-"`
	AudioFileName string             `json:"-"`
}

// RateCourseRequest is the payload for rating a course.
type RateCourseRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
}

// CourseView is a course with content access: signed media URLs and
// materials.
type CourseView struct {
	models.Course
	SignedVideoURL string                  `json:"signed_video_url,omitempty"`
	SignedAudioURL string                  `json:"signed_audio_url,omitempty"`
	Materials      []models.CourseMaterial `json:"materials"`
}

// CourseService owns the course catalog, uploads, ratings and content
// access.
type CourseService struct {
	courses     courseRepository
	instructors courseInstructorRepository
	audit       courseAuditRepository
	store       *storage.MediaStore
	signer      *storage.SignedURLSigner
	translator  translationEnqueuer
	cache       *CacheService
	cacheTTL    time.Duration
	mediaPrefix string
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService instance. mediaPrefix is the
// public route serving signed media, e.g. "/api/v1/media".
func NewCourseService(courses courseRepository, instructors courseInstructorRepository, audit courseAuditRepository, store *storage.MediaStore, signer *storage.SignedURLSigner, translator translationEnqueuer, cache *CacheService, cacheTTL time.Duration, mediaPrefix string, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		courses:     courses,
		instructors: instructors,
		audit:       audit,
		store:       store,
		signer:      signer,
		translator:  translator,
		cache:       cache,
		cacheTTL:    cacheTTL,
		mediaPrefix: mediaPrefix,
		validator:   validate,
		logger:      logger,
	}
}

// List returns the catalog with instructor names, rating aggregates and
// signed media URLs. The raw listing is cached; signatures are minted per
// request so cached entries never carry expiring tokens.
func (s *CourseService) List(ctx context.Context) ([]models.CourseListing, error) {
	var listings []models.CourseListing
	if hit, _ := s.cache.Get(ctx, courseCatalogCacheKey, &listings); !hit {
		var err error
		listings, err = s.courses.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		if err := s.cache.Set(ctx, courseCatalogCacheKey, listings, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache course catalog", zap.Error(err))
		}
	}

	for i := range listings {
		s.signListing(&listings[i])
	}
	return listings, nil
}

// Upload stores media, creates the course with its materials and enqueues
// the background translation.
func (s *CourseService) Upload(ctx context.Context, userID string, input UploadCourseInput) (*models.Course, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if input.VideoSource != models.VideoUploaded && input.VideoURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "external video source requires video_url")
	}
	if input.VideoSource == models.VideoUploaded && input.VideoFile == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded video source requires a video file")
	}

	profile, err := s.instructors.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no instructor profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
	}

	language := input.Language
	if language == "" {
		language = models.LanguageEnglish
	}
	course := &models.Course{
		InstructorID: profile.ID,
		Title:        input.Title,
		Description:  input.Description,
		Price:        input.Price,
		Language:     language,
		VideoSource:  input.VideoSource,
		VideoURL:     input.VideoURL,
	}

	if input.VideoFile != nil {
		rel, err := s.store.SaveStream("videos", input.VideoFileName, input.VideoFile)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store video")
		}
		course.VideoURL = rel
	}
	if input.AudioFile != nil {
		rel, err := s.store.SaveStream("audio", input.AudioFileName, input.AudioFile)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store audio guide")
		}
		course.AudioGuideURL = rel
	}

	materials := make([]models.CourseMaterial, 0, len(input.Materials))
	for _, m := range input.Materials {
		materials = append(materials, models.CourseMaterial{Title: m.Title, Type: m.Type, Content: m.Content})
	}

	if err := s.courses.Create(ctx, course, materials); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	if s.translator != nil {
		if err := s.translator.EnqueueCourse(course.ID); err != nil {
			s.logger.Warn("failed to enqueue course translation", zap.String("course_id", course.ID), zap.Error(err))
		}
	}

	if err := s.cache.Invalidate(ctx, courseCatalogCacheKey); err != nil {
		s.logger.Warn("failed to invalidate course catalog cache", zap.Error(err))
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionCourseUpload,
		Resource:   "course",
		ResourceID: &course.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q}`, course.Title)),
	}); err != nil {
		s.logger.Warn("failed to record course audit log", zap.Error(err))
	}

	return course, nil
}

// Rate records the caller's rating. Only enrolled users may rate; repeat
// ratings overwrite the earlier one.
func (s *CourseService) Rate(ctx context.Context, userID string, req RateCourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled, err := s.courses.IsEnrolled(ctx, userID, req.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "only enrolled users can rate a course")
	}

	if err := s.courses.Rate(ctx, &models.CourseRating{CourseID: req.CourseID, UserID: userID, Rating: req.Rating}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record rating")
	}

	if err := s.cache.Invalidate(ctx, courseCatalogCacheKey); err != nil {
		s.logger.Warn("failed to invalidate course catalog cache", zap.Error(err))
	}
	return nil
}

// Access returns the course content with signed URLs when the caller is
// enrolled, owns the course as its instructor, or is an admin.
func (s *CourseService) Access(ctx context.Context, userID string, role models.UserRole, courseID string) (*CourseView, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	allowed := role == models.RoleAdmin
	if !allowed {
		enrolled, err := s.courses.IsEnrolled(ctx, userID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		allowed = enrolled
	}
	if !allowed && role == models.RoleInstructor {
		if profile, err := s.instructors.FindProfileByUserID(ctx, userID); err == nil {
			allowed = profile.ID == course.InstructorID
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor profile")
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course access requires enrollment")
	}

	materials, err := s.courses.FindMaterials(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load materials")
	}

	view := &CourseView{Course: *course, Materials: materials}
	if course.VideoSource == models.VideoUploaded && course.VideoURL != "" {
		view.SignedVideoURL = s.signMedia(course.ID, course.VideoURL)
	}
	if course.AudioGuideURL != "" {
		view.SignedAudioURL = s.signMedia(course.ID, course.AudioGuideURL)
	}
	return view, nil
}

func (s *CourseService) signListing(listing *models.CourseListing) {
	if listing.VideoSource == models.VideoUploaded && listing.VideoURL != "" {
		listing.VideoURL = s.signMedia(listing.ID, listing.VideoURL)
	}
	if listing.AudioGuideURL != "" {
		listing.AudioGuideURL = s.signMedia(listing.ID, listing.AudioGuideURL)
	}
}

func (s *CourseService) signMedia(courseID, rel string) string {
	token, _, err := s.signer.Generate(courseID, rel)
	if err != nil {
		s.logger.Warn("failed to sign media url", zap.String("course_id", courseID), zap.Error(err))
		return ""
	}
	return fmt.Sprintf("%s/%s?token=%s", s.mediaPrefix, rel, token)
}
