package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recurrence is how often a calendar event repeats.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// Valid reports whether r is a supported recurrence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Event is a stored calendar event. Occurrences of recurring events are computed, never stored.
type Event struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Description     json.RawMessage `json:"description,omitempty"`
	DescriptionText string          `json:"-"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	Location        string          `json:"location,omitempty"`
	LocationURL     string          `json:"location_url,omitempty"`
	Recurrence      Recurrence      `json:"recurrence"`
	RecurrenceEnd   *time.Time      `json:"recurrence_end,omitempty"`
	CreatedBy       uuid.UUID       `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Duration is the length of one occurrence.
func (e *Event) Duration() time.Duration {
	if e.EndTime.Before(e.StartTime) {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// EventOccurrence is one concrete appearance of an event in a queried window.
type EventOccurrence struct {
	Event          *Event    `json:"event"`
	OccurrenceDate time.Time `json:"occurrence_date"`
	OccurrenceEnd  time.Time `json:"occurrence_end"`
}
