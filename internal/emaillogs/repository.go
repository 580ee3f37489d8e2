// Package emaillogs records outgoing email deliveries.
package emaillogs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row and fills in its id.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	if l.Status == "" {
		l.Status = models.EmailLogStatusPending
	}
	return r.pool.QueryRow(ctx, `INSERT INTO email_logs (user_id, event_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6) RETURNING id, created_at`,
		l.UserID, l.EventID, l.EmailType, l.RecipientEmail, l.Subject, l.Status).Scan(&l.ID, &l.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = $3, error_message = NULL WHERE id = $1`,
		id, models.EmailLogStatusSent, at)
	return err
}

// MarkFailed records a delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

// Filter narrows a listing. Zero fields are ignored.
type Filter struct {
	UserID    *uuid.UUID
	EventID   *uuid.UUID
	EmailType string
	Status    models.EmailStatus
	Limit     int
}

// List returns matching logs, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]*models.EmailLog, error) {
	q := `SELECT id, user_id, event_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs WHERE TRUE`
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(cond, len(args))
	}
	if f.UserID != nil {
		add(" AND user_id = $%d", *f.UserID)
	}
	if f.EventID != nil {
		add(" AND event_id = $%d", *f.EventID)
	}
	if f.EmailType != "" {
		add(" AND email_type = $%d", f.EmailType)
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	add(" ORDER BY created_at DESC LIMIT $%d", f.Limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.UserID, &el.EventID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
