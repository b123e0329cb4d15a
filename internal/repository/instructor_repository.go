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

// InstructorRepository provides database access for instructor profiles and
// weekly availability slots.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository creates a new instance of InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// CreateProfile inserts an instructor profile.
func (r *InstructorRepository) CreateProfile(ctx context.Context, profile *models.InstructorProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO instructor_profiles (id, user_id, bio, expertise, hourly_rate, created_at, updated_at) VALUES (:id, :user_id, :bio, :expertise, :hourly_rate, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create instructor profile: %w", err)
	}
	return nil
}

// FindProfileByUserID returns the profile owned by a user.
func (r *InstructorRepository) FindProfileByUserID(ctx context.Context, userID string) (*models.InstructorProfile, error) {
	const query = `SELECT id, user_id, bio, expertise, hourly_rate, created_at, updated_at FROM instructor_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.InstructorProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor profile by user: %w", err)
	}
	return &profile, nil
}

// FindProfileByID returns the profile by its identifier.
func (r *InstructorRepository) FindProfileByID(ctx context.Context, id string) (*models.InstructorProfile, error) {
	const query = `SELECT id, user_id, bio, expertise, hourly_rate, created_at, updated_at FROM instructor_profiles WHERE id = $1 LIMIT 1`
	var profile models.InstructorProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile updates the mutable profile fields.
func (r *InstructorRepository) UpdateProfile(ctx context.Context, profile *models.InstructorProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructor_profiles SET bio = :bio, expertise = :expertise, hourly_rate = :hourly_rate, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update instructor profile: %w", err)
	}
	return nil
}

// ListProfiles returns every instructor profile joined with the user name
// and email, newest first.
func (r *InstructorRepository) ListProfiles(ctx context.Context) ([]models.InstructorProfile, map[string]models.UserInfo, error) {
	const query = `SELECT p.id, p.user_id, p.bio, p.expertise, p.hourly_rate, p.created_at, p.updated_at, u.full_name, u.email, u.role, u.language FROM instructor_profiles p JOIN users u ON u.id = p.user_id WHERE u.active = TRUE ORDER BY p.created_at DESC`
	rows := []struct {
		models.InstructorProfile
		FullName string          `db:"full_name"`
		Email    string          `db:"email"`
		Role     models.UserRole `db:"role"`
		Language models.Language `db:"language"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, nil, fmt.Errorf("list instructor profiles: %w", err)
	}

	profiles := make([]models.InstructorProfile, 0, len(rows))
	users := make(map[string]models.UserInfo, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.InstructorProfile)
		users[row.UserID] = models.UserInfo{
			ID:       row.UserID,
			Email:    row.Email,
			FullName: row.FullName,
			Role:     row.Role,
			Language: row.Language,
		}
	}
	return profiles, users, nil
}

// ReplaceSlots atomically swaps the weekly availability of an instructor.
func (r *InstructorRepository) ReplaceSlots(ctx context.Context, instructorID string, slots []models.AvailabilitySlot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace slots: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE instructor_id = $1`, instructorID); err != nil {
		return fmt.Errorf("clear availability slots: %w", err)
	}

	const insert = `INSERT INTO availability_slots (id, instructor_id, day_of_week, start_time, end_time) VALUES (:id, :instructor_id, :day_of_week, :start_time, :end_time)`
	for i := range slots {
		slots[i].InstructorID = instructorID
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, insert, slots[i]); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace slots: %w", err)
	}
	return nil
}

// CreateFreeResource inserts a shared learning link for an instructor.
func (r *InstructorRepository) CreateFreeResource(ctx context.Context, resource *models.FreeResource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO free_resources (id, instructor_id, title, description, url, created_at) VALUES (:id, :instructor_id, :title, :description, :url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create free resource: %w", err)
	}
	return nil
}

// ListFreeResources returns an instructor's shared links, newest first.
func (r *InstructorRepository) ListFreeResources(ctx context.Context, instructorID string) ([]models.FreeResource, error) {
	const query = `SELECT id, instructor_id, title, description, url, created_at FROM free_resources WHERE instructor_id = $1 ORDER BY created_at DESC`
	var resources []models.FreeResource
	if err := r.db.SelectContext(ctx, &resources, query, instructorID); err != nil {
		return nil, fmt.Errorf("list free resources: %w", err)
	}
	return resources, nil
}

// FindSlots returns the weekly availability of an instructor ordered by
// day and start time.
func (r *InstructorRepository) FindSlots(ctx context.Context, instructorID string) ([]models.AvailabilitySlot, error) {
	const query = `SELECT id, instructor_id, day_of_week, start_time, end_time FROM availability_slots WHERE instructor_id = $1 ORDER BY day_of_week, start_time`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, instructorID); err != nil {
		return nil, fmt.Errorf("find availability slots: %w", err)
	}
	return slots, nil
}
