// Package audit records and lists moderation actions. Entries are append-only.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

// Entry is a moderation action to record.
type Entry struct {
	ActorID    uuid.UUID
	Action     models.AuditAction
	TargetID   *uuid.UUID
	TargetType string
	Details    interface{}
}

// Change is the usual details payload: the value before and after the action.
type Change struct {
	Previous interface{} `json:"previous,omitempty"`
	New      interface{} `json:"new,omitempty"`
}

// Target types.
const (
	TargetUser     = "user"
	TargetPost     = "post"
	TargetComment  = "comment"
	TargetEvent    = "event"
	TargetSettings = "settings"
	TargetCourse   = "course"
)

// Insert writes e using q, which may be a transaction.
func Insert(ctx context.Context, q database.Querier, e Entry) error {
	var details []byte
	if e.Details != nil {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}
	_, err := q.Exec(ctx, `INSERT INTO audit_logs (user_id, action, target_id, target_type, details)
		VALUES ($1, $2, $3, NULLIF($4,''), $5)`,
		e.ActorID, string(e.Action), e.TargetID, e.TargetType, details)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Ref returns a pointer to id for Entry.TargetID.
func Ref(id uuid.UUID) *uuid.UUID {
	return &id
}
