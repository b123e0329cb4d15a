package models

import "time"

// VideoSource tells where a course's primary video lives.
type VideoSource string

const (
	VideoUploaded VideoSource = "UPLOADED"
	VideoYouTube  VideoSource = "YOUTUBE"
	VideoVimeo    VideoSource = "VIMEO"
)

// Course is a published learning unit owned by an instructor.
type Course struct {
	ID                    string      `db:"id" json:"id"`
	InstructorID          string      `db:"instructor_id" json:"instructor_id"`
	Title                 string      `db:"title" json:"title"`
	Description           string      `db:"description" json:"description"`
	TranslatedTitle       string      `db:"translated_title" json:"translated_title,omitempty"`
	TranslatedDescription string      `db:"translated_description" json:"translated_description,omitempty"`
	Price                 float64     `db:"price" json:"price"`
	Language              Language    `db:"language" json:"language"`
	VideoSource           VideoSource `db:"video_source" json:"video_source"`
	VideoURL              string      `db:"video_url" json:"video_url,omitempty"`
	AudioGuideURL         string      `db:"audio_guide_url" json:"audio_guide_url,omitempty"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
}

// CourseMaterial is one supplementary text item attached to a course.
type CourseMaterial struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Title    string `db:"title" json:"title"`
	Type     string `db:"type" json:"type"`
	Content  string `db:"content" json:"content"`
}

// CourseEnrollment grants a user access to a course's content.
type CourseEnrollment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// CourseRating is one user's 1-5 rating of a course.
type CourseRating struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseListing is the catalog entry: course joined with instructor name
// and aggregated rating.
type CourseListing struct {
	Course
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	AverageRating  float64 `db:"average_rating" json:"average_rating"`
	RatingCount    int     `db:"rating_count" json:"rating_count"`
}
