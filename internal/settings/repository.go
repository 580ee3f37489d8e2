// Package settings serves the single community settings row.
package settings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
)

const columns = `name, description, COALESCE(logo_url,''), COALESCE(logo_key,''), is_private, welcome_message, updated_at`

// Columns is the select list Scan expects.
func Columns() string { return columns }

// Scan reads one settings row.
func Scan(row pgx.Row) (*models.CommunitySettings, error) {
	var s models.CommunitySettings
	if err := row.Scan(&s.Name, &s.Description, &s.LogoURL, &s.LogoKey, &s.IsPrivate, &s.WelcomeMessage, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Repository reads community settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the settings row. Migrations always insert it.
func (r *Repository) Get(ctx context.Context) (*models.CommunitySettings, error) {
	return Scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM community_settings WHERE id = 1`))
}
