// Package members serves member directory and profile endpoints.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

// ListFilter selects a page of the directory.
type ListFilter struct {
	Query  string
	Role   string
	Limit  int
	Offset int
}

// Repository reads and updates member profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a members repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns members ordered by points, then name.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.User, error) {
	args := []interface{}{}
	q := `SELECT ` + auth.UserColumns() + ` FROM users WHERE TRUE`
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		q += fmt.Sprintf(" AND full_name ILIKE $%d", len(args))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		q += fmt.Sprintf(" AND role = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY points DESC, full_name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Get returns a member by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := auth.ScanUser(r.pool.QueryRow(ctx, `SELECT `+auth.UserColumns()+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile writes the editable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET full_name = $2, bio = $3, locale = NULLIF($4,''), updated_at = NOW()
		WHERE id = $1`, id, p.FullName, p.Bio, p.Locale)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAvatar stores a new avatar and returns the previous object key.
func (r *Repository) SetAvatar(ctx context.Context, id uuid.UUID, url, key string) (string, error) {
	var prev string
	err := r.pool.QueryRow(ctx, `UPDATE users u SET avatar_url = $2, avatar_key = $3, updated_at = NOW()
		FROM (SELECT id, COALESCE(avatar_key,'') AS old_key FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id RETURNING old.old_key`, id, url, key).Scan(&prev)
	if err != nil {
		if database.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return prev, nil
}

// ActiveMembers returns every member who is not banned.
func (r *Repository) ActiveMembers(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+auth.UserColumns()+` FROM users WHERE banned_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}
