package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
)

// Filter narrows an audit log listing. Zero fields are ignored.
type Filter struct {
	ActorID    *uuid.UUID
	TargetID   *uuid.UUID
	Action     models.AuditAction
	TargetType string
	Before     *time.Time
	Limit      int
}

// Repository reads audit logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns matching entries newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	query, args := buildListQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		var action string
		var targetType *string
		if err := rows.Scan(&l.ID, &l.UserID, &action, &l.TargetID, &targetType, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Action = models.AuditAction(action)
		if targetType != nil {
			l.TargetType = *targetType
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func buildListQuery(f Filter) (string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorID != nil {
		add("user_id = $%d", *f.ActorID)
	}
	if f.TargetID != nil {
		add("target_id = $%d", *f.TargetID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
	}
	if f.Before != nil {
		add("created_at < $%d", *f.Before)
	}
	q := `SELECT id, user_id, action, target_id, target_type, details, created_at FROM audit_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	return q, args
}
