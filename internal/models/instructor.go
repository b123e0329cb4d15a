package models

import (
	"time"

	"github.com/lib/pq"
)

// InstructorProfile holds the marketplace profile for an INSTRUCTOR user.
type InstructorProfile struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Bio        string         `db:"bio" json:"bio"`
	Expertise  pq.StringArray `db:"expertise" json:"expertise"`
	HourlyRate float64        `db:"hourly_rate" json:"hourly_rate"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// AvailabilitySlot is one weekly recurring window an instructor accepts
// consultations in. Times are "HH:MM" in the instructor's declared zone.
type AvailabilitySlot struct {
	ID           string `db:"id" json:"id"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
	DayOfWeek    int    `db:"day_of_week" json:"day_of_week"`
	StartTime    string `db:"start_time" json:"start_time"`
	EndTime      string `db:"end_time" json:"end_time"`
}

// FreeResource is a public learning link an instructor shares outside the
// paid catalog.
type FreeResource struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	URL          string    `db:"url" json:"url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// InstructorListing is the public catalog entry: profile joined with the
// user record and the declared weekly slots.
type InstructorListing struct {
	Profile  InstructorProfile  `json:"profile"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Slots    []AvailabilitySlot `json:"slots"`
	Courses  int                `json:"courses"`
	Sessions int                `json:"sessions"`
}
