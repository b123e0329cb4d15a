package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	translate "google.golang.org/api/translate/v2"
	"google.golang.org/api/option"

	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/pkg/config"
	"github.com/agrisetu/agrisetu-api/pkg/jobs"
)

const jobTypeCourseTranslation = "course_translation"

type translationCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SetTranslations(ctx context.Context, courseID, title, description string) error
}

// TranslationService translates course titles and descriptions between
// English and Hindi on a background queue. The whole pipeline is
// best-effort: a course that never gets translated still serves its
// original text.
type TranslationService struct {
	courses translationCourseRepository
	apiKey  string
	enabled bool
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewTranslationService constructs the service and its worker queue.
func NewTranslationService(courses translationCourseRepository, cfg config.TranslateConfig, logger *zap.Logger) *TranslationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TranslationService{
		courses: courses,
		apiKey:  cfg.APIKey,
		enabled: cfg.Enabled && cfg.APIKey != "",
		logger:  logger,
	}
	s.queue = jobs.NewQueue("course-translation", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *TranslationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *TranslationService) Stop() {
	s.queue.Stop()
}

// EnqueueCourse schedules translation of one course. A disabled service
// accepts and drops the request.
func (s *TranslationService) EnqueueCourse(courseID string) error {
	if !s.enabled {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeCourseTranslation,
		Payload: courseID,
	})
}

func (s *TranslationService) handleJob(ctx context.Context, job jobs.Job) error {
	courseID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("load course for translation: %w", err)
	}

	source, target := "en", "hi"
	if course.Language == models.LanguageHindi {
		source, target = "hi", "en"
	}

	title, err := s.translate(ctx, course.Title, source, target)
	if err != nil {
		return err
	}
	description, err := s.translate(ctx, course.Description, source, target)
	if err != nil {
		return err
	}

	if err := s.courses.SetTranslations(ctx, course.ID, title, description); err != nil {
		return fmt.Errorf("store translations: %w", err)
	}

	s.logger.Info("course translated",
		zap.String("course_id", course.ID),
		zap.String("target", target))
	return nil
}

func (s *TranslationService) translate(ctx context.Context, text, source, target string) (string, error) {
	if text == "" {
		return "", nil
	}

	svc, err := translate.NewService(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		return "", fmt.Errorf("build translate client: %w", err)
	}

	resp, err := svc.Translations.List([]string{text}, target).Source(source).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("translate returned no results")
	}
	return resp.Translations[0].TranslatedText, nil
}
