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

// CourseRepository provides database access for courses, materials,
// enrollments and ratings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course together with its materials.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, materials []models.CourseMaterial) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer tx.Rollback()

	const insertCourse = `INSERT INTO courses (id, instructor_id, title, description, translated_title, translated_description, price, language, video_source, video_url, audio_guide_url, created_at, updated_at) VALUES (:id, :instructor_id, :title, :description, :translated_title, :translated_description, :price, :language, :video_source, :video_url, :audio_guide_url, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	const insertMaterial = `INSERT INTO course_materials (id, course_id, title, type, content) VALUES (:id, :course_id, :title, :type, :content)`
	for i := range materials {
		materials[i].CourseID = course.ID
		if materials[i].ID == "" {
			materials[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, insertMaterial, materials[i]); err != nil {
			return fmt.Errorf("create course material: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, instructor_id, title, description, translated_title, translated_description, price, language, video_source, video_url, audio_guide_url, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// List returns the catalog joined with instructor name and rating
// aggregates, newest first.
func (r *CourseRepository) List(ctx context.Context) ([]models.CourseListing, error) {
	const query = `SELECT c.id, c.instructor_id, c.title, c.description, c.translated_title, c.translated_description, c.price, c.language, c.video_source, c.video_url, c.audio_guide_url, c.created_at, c.updated_at, u.full_name AS instructor_name, COALESCE(AVG(r.rating), 0) AS average_rating, COUNT(r.id) AS rating_count FROM courses c JOIN instructor_profiles ip ON ip.id = c.instructor_id JOIN users u ON u.id = ip.user_id LEFT JOIN course_ratings r ON r.course_id = c.id GROUP BY c.id, u.full_name ORDER BY c.created_at DESC`
	var listings []models.CourseListing
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return listings, nil
}

// ListByInstructor returns the courses owned by an instructor.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	const query = `SELECT id, instructor_id, title, description, translated_title, translated_description, price, language, video_source, video_url, audio_guide_url, created_at, updated_at FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("list courses by instructor: %w", err)
	}
	return courses, nil
}

// FindMaterials returns a course's materials.
func (r *CourseRepository) FindMaterials(ctx context.Context, courseID string) ([]models.CourseMaterial, error) {
	const query = `SELECT id, course_id, title, type, content FROM course_materials WHERE course_id = $1 ORDER BY title`
	var materials []models.CourseMaterial
	if err := r.db.SelectContext(ctx, &materials, query, courseID); err != nil {
		return nil, fmt.Errorf("find course materials: %w", err)
	}
	return materials, nil
}

// SetTranslations records the translated title and description.
func (r *CourseRepository) SetTranslations(ctx context.Context, courseID, title, description string) error {
	const query = `UPDATE courses SET translated_title = $2, translated_description = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, title, description, time.Now().UTC()); err != nil {
		return fmt.Errorf("set course translations: %w", err)
	}
	return nil
}

// Enroll grants a user access to a course. Re-enrolling is a no-op.
func (r *CourseRepository) Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_enrollments (id, user_id, course_id, enrolled_at) VALUES (:id, :user_id, :course_id, :enrolled_at) ON CONFLICT (user_id, course_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("enroll in course: %w", err)
	}
	return nil
}

// IsEnrolled reports whether the user is enrolled in the course.
func (r *CourseRepository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_enrollments WHERE user_id = $1 AND course_id = $2)`
	var enrolled bool
	if err := r.db.GetContext(ctx, &enrolled, query, userID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

// ListEnrollments returns the user's enrollments joined with course titles.
func (r *CourseRepository) ListEnrollments(ctx context.Context, userID string) ([]models.CourseListing, error) {
	const query = `SELECT c.id, c.instructor_id, c.title, c.description, c.translated_title, c.translated_description, c.price, c.language, c.video_source, c.video_url, c.audio_guide_url, c.created_at, c.updated_at, u.full_name AS instructor_name, COALESCE(AVG(r.rating), 0) AS average_rating, COUNT(r.id) AS rating_count FROM course_enrollments e JOIN courses c ON c.id = e.course_id JOIN instructor_profiles ip ON ip.id = c.instructor_id JOIN users u ON u.id = ip.user_id LEFT JOIN course_ratings r ON r.course_id = c.id WHERE e.user_id = $1 GROUP BY c.id, u.full_name, e.enrolled_at ORDER BY e.enrolled_at DESC`
	var listings []models.CourseListing
	if err := r.db.SelectContext(ctx, &listings, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return listings, nil
}

// Rate upserts a user's rating of a course.
func (r *CourseRepository) Rate(ctx context.Context, rating *models.CourseRating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_ratings (id, course_id, user_id, rating, created_at) VALUES (:id, :course_id, :user_id, :rating, :created_at) ON CONFLICT (user_id, course_id) DO UPDATE SET rating = EXCLUDED.rating`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("rate course: %w", err)
	}
	return nil
}

// CountAll returns the total number of courses.
func (r *CourseRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}
