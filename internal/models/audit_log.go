package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction names a moderation action recorded in the audit log.
type AuditAction string

const (
	AuditUserBanned      AuditAction = "USER_BANNED"
	AuditUserUnbanned    AuditAction = "USER_UNBANNED"
	AuditRoleChanged     AuditAction = "ROLE_CHANGED"
	AuditPostEdited      AuditAction = "POST_EDITED"
	AuditPostDeleted     AuditAction = "POST_DELETED"
	AuditCommentEdited   AuditAction = "COMMENT_EDITED"
	AuditCommentDeleted  AuditAction = "COMMENT_DELETED"
	AuditSettingsUpdated AuditAction = "SETTINGS_UPDATED"
	AuditEventCreated    AuditAction = "EVENT_CREATED"
	AuditEventUpdated    AuditAction = "EVENT_UPDATED"
	AuditEventDeleted    AuditAction = "EVENT_DELETED"
	AuditCourseDeleted   AuditAction = "COURSE_DELETED"
)

// AuditLog is an append-only record of a moderation action.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Action     AuditAction     `json:"action"`
	TargetID   *uuid.UUID      `json:"target_id,omitempty"`
	TargetType string          `json:"target_type,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
