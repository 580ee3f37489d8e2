package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Course is a classroom course. Deleting it cascades to modules, lessons and progress.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Published   bool      `json:"published"`
	Position    int       `json:"position"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseModule groups lessons inside a course.
type CourseModule struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	Lessons   []Lesson  `json:"lessons,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lesson is a single unit of course content.
type Lesson struct {
	ID          uuid.UUID       `json:"id"`
	ModuleID    uuid.UUID       `json:"module_id"`
	Title       string          `json:"title"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentText string          `json:"-"`
	VideoURL    string          `json:"video_url,omitempty"`
	Position    int             `json:"position"`
	Completed   bool            `json:"completed"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Enrollment is unique per (user, course).
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CourseID  uuid.UUID `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CourseProgress summarises a member's completion of a course.
type CourseProgress struct {
	CourseID         uuid.UUID `json:"course_id"`
	TotalLessons     int       `json:"total_lessons"`
	CompletedLessons int       `json:"completed_lessons"`
	Percent          int       `json:"percent"`
}
