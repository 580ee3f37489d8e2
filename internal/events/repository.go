package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

const eventColumns = `id, title, description, description_text, start_time, end_time,
	COALESCE(location,''), COALESCE(location_url,''), recurrence, recurrence_end, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var recurrence string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DescriptionText, &e.StartTime, &e.EndTime,
		&e.Location, &e.LocationURL, &recurrence, &e.RecurrenceEnd, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Recurrence = models.Recurrence(recurrence)
	return &e, nil
}

// Get returns an event by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListInWindow returns every event that can have an occurrence in [from, to]:
// series that started by to and have not ended before from.
func (r *Repository) ListInWindow(ctx context.Context, from, to time.Time) ([]*models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE start_time <= $2 AND (recurrence_end IS NULL OR recurrence_end >= $1)
		ORDER BY start_time, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// WithTx runs fn with event writes and audit inserts sharing one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(pgxTx{tx: tx})
	})
}

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
}

func (t pgxTx) Insert(ctx context.Context, e *models.Event) error {
	return t.tx.QueryRow(ctx, `INSERT INTO events (title, description, description_text, start_time, end_time,
			location, location_url, recurrence, recurrence_end, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.DescriptionText, e.StartTime, e.EndTime,
		e.Location, e.LocationURL, string(e.Recurrence), e.RecurrenceEnd, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (t pgxTx) Update(ctx context.Context, e *models.Event) error {
	err := t.tx.QueryRow(ctx, `UPDATE events SET title = $2, description = $3, description_text = $4,
			start_time = $5, end_time = $6, location = NULLIF($7,''), location_url = NULLIF($8,''),
			recurrence = $9, recurrence_end = $10, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		e.ID, e.Title, e.Description, e.DescriptionText, e.StartTime, e.EndTime,
		e.Location, e.LocationURL, string(e.Recurrence), e.RecurrenceEnd,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (t pgxTx) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t pgxTx) Audit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}
