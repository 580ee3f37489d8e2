package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/feed"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/settings"
	"github.com/aura-community/backend/pkg/database"
)

// Repository is the Postgres Store. Targets are locked FOR UPDATE for the
// length of the action.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a moderation repository.
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

// notFound maps a missing row to ErrNotFound, still matching the feed or auth
// sentinel so callers that delegate here keep their own error handling.
func notFound(err error, domain ...error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	for _, d := range domain {
		if errors.Is(err, d) {
			return fmt.Errorf("%w: %w", ErrNotFound, d)
		}
	}
	return err
}

func (t pgxTx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := auth.ScanUser(t.tx.QueryRow(ctx, `SELECT `+auth.UserColumns()+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, auth.ErrUserNotFound)
	}
	return u, nil
}

func (t pgxTx) SetBan(ctx context.Context, id uuid.UUID, bannedAt *time.Time, reason string) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET banned_at = $2, ban_reason = NULLIF($3,''), updated_at = NOW() WHERE id = $1`,
		id, bannedAt, reason)
	return err
}

func (t pgxTx) SetRole(ctx context.Context, id uuid.UUID, role permissions.Role) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role.String())
	return err
}

func (t pgxTx) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := feed.ScanPost(t.tx.QueryRow(ctx, `SELECT `+feed.PostColumns()+` FROM posts p WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err != nil {
		return nil, notFound(err, feed.ErrPostNotFound)
	}
	return p, nil
}

func (t pgxTx) ReplacePost(ctx context.Context, p *models.Post) error {
	return t.tx.QueryRow(ctx, `UPDATE posts SET title = $2, content = $3, content_text = $4,
			category = NULLIF($5,''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		p.ID, p.Title, p.Content, p.ContentText, p.Category).Scan(&p.UpdatedAt)
}

func (t pgxTx) DeletePost(ctx context.Context, id uuid.UUID) error {
	return notFound(feed.DeletePostTx(ctx, t.tx, id), feed.ErrPostNotFound)
}

func (t pgxTx) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := feed.ScanComment(t.tx.QueryRow(ctx, `SELECT `+feed.CommentColumns()+` FROM comments c WHERE c.id = $1 FOR UPDATE OF c`, id))
	if err != nil {
		return nil, notFound(err, feed.ErrCommentNotFound)
	}
	return c, nil
}

func (t pgxTx) ReplaceComment(ctx context.Context, c *models.Comment) error {
	return t.tx.QueryRow(ctx, `UPDATE comments SET content = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Content).Scan(&c.UpdatedAt)
}

func (t pgxTx) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return notFound(feed.DeleteCommentTx(ctx, t.tx, id), feed.ErrCommentNotFound)
}

func (t pgxTx) GetSettings(ctx context.Context) (*models.CommunitySettings, error) {
	s, err := settings.Scan(t.tx.QueryRow(ctx, `SELECT `+settings.Columns()+` FROM community_settings WHERE id = 1 FOR UPDATE`))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (t pgxTx) SaveSettings(ctx context.Context, s *models.CommunitySettings) error {
	return t.tx.QueryRow(ctx, `UPDATE community_settings SET name = $1, description = $2, logo_url = NULLIF($3,''),
			logo_key = NULLIF($4,''), is_private = $5, welcome_message = $6, updated_at = NOW()
		WHERE id = 1 RETURNING updated_at`,
		s.Name, s.Description, s.LogoURL, s.LogoKey, s.IsPrivate, s.WelcomeMessage).Scan(&s.UpdatedAt)
}

func (t pgxTx) Audit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}
