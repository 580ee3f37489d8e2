package models

import (
	"time"

	"github.com/google/uuid"
)

// Email kinds sent by the worker.
const (
	EmailTypeWelcome       = "welcome"
	EmailTypeLevelUp       = "level_up"
	EmailTypeEventReminder = "event_reminder"
)

// KnownEmailType reports whether t is one of the EmailType constants.
func KnownEmailType(t string) bool {
	switch t {
	case EmailTypeWelcome, EmailTypeLevelUp, EmailTypeEventReminder:
		return true
	}
	return false
}

// EmailStatus is the delivery state of one email_logs row.
type EmailStatus string

const (
	EmailLogStatusPending EmailStatus = "pending"
	EmailLogStatusSent    EmailStatus = "sent"
	EmailLogStatusFailed  EmailStatus = "failed"
)

// Valid reports whether s is a known status.
func (s EmailStatus) Valid() bool {
	return s == EmailLogStatusPending || s == EmailLogStatusSent || s == EmailLogStatusFailed
}

// EmailLog is one delivery attempt written by the email worker.
type EmailLog struct {
	ID             uuid.UUID   `json:"id"`
	UserID         *uuid.UUID  `json:"user_id,omitempty"`
	EventID        *uuid.UUID  `json:"event_id,omitempty"`
	EmailType      string      `json:"email_type"`
	RecipientEmail string      `json:"recipient_email"`
	Subject        string      `json:"subject,omitempty"`
	Status         EmailStatus `json:"status"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
