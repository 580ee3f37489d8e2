package points

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a points repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx implements Store.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(pgxTx{tx: tx})
	})
}

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) InsertPointsEvent(ctx context.Context, userID uuid.UUID, amount int, action Action) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO points_events (user_id, amount, action) VALUES ($1, $2, $3)`,
		userID, amount, string(action))
	if database.IsForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return err
}

// AddPoints takes the user row lock, which serialises concurrent grants to the same user.
func (t pgxTx) AddPoints(ctx context.Context, userID uuid.UUID, amount int) (int, int, error) {
	var points, level int
	err := t.tx.QueryRow(ctx,
		`UPDATE users SET points = points + $2, updated_at = NOW() WHERE id = $1 RETURNING points, level`,
		userID, amount).Scan(&points, &level)
	if database.IsNoRows(err) {
		return 0, 0, ErrUserNotFound
	}
	return points, level, err
}

func (t pgxTx) SetLevel(ctx context.Context, userID uuid.UUID, level int) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1`, userID, level)
	return err
}

// AllTime returns the top members by cumulative points.
func (r *Repository) AllTime(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, full_name, COALESCE(avatar_url,''), level, points
		FROM users WHERE banned_at IS NULL AND points > 0
		ORDER BY points DESC, created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanLeaderboard(rows)
}

// Since returns the top members by points earned at or after from.
func (r *Repository) Since(ctx context.Context, from time.Time, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.full_name, COALESCE(u.avatar_url,''), u.level, SUM(pe.amount)::int AS earned
		FROM points_events pe
		JOIN users u ON u.id = pe.user_id
		WHERE pe.created_at >= $1 AND u.banned_at IS NULL
		GROUP BY u.id
		ORDER BY earned DESC, MIN(pe.created_at) ASC LIMIT $2`, from, limit)
	if err != nil {
		return nil, err
	}
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows pgx.Rows) ([]models.LeaderboardEntry, error) {
	defer rows.Close()
	list := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FullName, &e.AvatarURL, &e.Level, &e.Points); err != nil {
			return nil, err
		}
		e.Rank = len(list) + 1
		list = append(list, e)
	}
	return list, rows.Err()
}

// History returns a member's most recent ledger entries.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointsEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, amount, action, created_at
		FROM points_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PointsEvent{}
	for rows.Next() {
		var e models.PointsEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Action, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// RecomputeLevels sets every user's level from its points; used after threshold changes.
// It returns the number of users changed.
func (r *Repository) RecomputeLevels(ctx context.Context) (int, error) {
	changed := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, points, level FROM users FOR UPDATE`)
		if err != nil {
			return err
		}
		type row struct {
			id    uuid.UUID
			level int
		}
		var updates []row
		for rows.Next() {
			var id uuid.UUID
			var pts, level int
			if err := rows.Scan(&id, &pts, &level); err != nil {
				rows.Close()
				return err
			}
			if want := CalculateLevel(pts); want != level {
				updates = append(updates, row{id, want})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, u := range updates {
			if _, err := tx.Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1`, u.id, u.level); err != nil {
				return fmt.Errorf("update level %s: %w", u.id, err)
			}
		}
		changed = len(updates)
		return nil
	})
	return changed, err
}
