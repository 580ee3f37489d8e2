package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/database"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrOwnerExists  = errors.New("community already has an owner")
)

const singleOwnerIndex = "idx_users_single_owner"

// userColumns matches ScanUser.
const userColumns = `id, email, password_hash, full_name, bio, COALESCE(avatar_url,''), COALESCE(avatar_key,''),
	COALESCE(locale,''), role, points, level, banned_at, COALESCE(ban_reason,''), created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ScanUser scans a row selected with UserColumns.
func ScanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Bio, &u.AvatarURL, &u.AvatarKey,
		&u.Locale, &role, &u.Points, &u.Level, &u.BannedAt, &u.BanReason, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = permissions.ParseRole(role)
	return &u, nil
}

// UserColumns is the select list read by ScanUser.
func UserColumns() string { return userColumns }

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return ScanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return ScanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// Create inserts a new user. The first account of the community becomes its owner.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName, locale string) (*models.User, error) {
	var u *models.User
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Serialise registrations so only one can observe an empty table.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('users_register'))`); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users)`).Scan(&exists); err != nil {
			return err
		}
		role := permissions.RoleMember
		if !exists {
			role = permissions.RoleOwner
		}
		var err error
		u, err = ScanUser(tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, full_name, locale, role)
			VALUES ($1, $2, $3, NULLIF($4,''), $5) RETURNING `+userColumns,
			email, passwordHash, fullName, locale, role.String()))
		return err
	})
	if database.IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	return u, err
}

// CreateWithRole inserts a user with an explicit role; used by the admin CLI.
func (r *Repository) CreateWithRole(ctx context.Context, email, passwordHash, fullName string, role permissions.Role) (*models.User, error) {
	u, err := ScanUser(r.pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4) RETURNING `+userColumns, email, passwordHash, fullName, role.String()))
	if database.IsUniqueViolation(err) {
		if database.ViolatedConstraint(err) == singleOwnerIndex {
			return nil, ErrOwnerExists
		}
		return nil, ErrEmailTaken
	}
	return u, err
}

// UpdatePassword replaces a user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role by email; used by the admin CLI.
func (r *Repository) SetRole(ctx context.Context, email string, role permissions.Role) (*models.User, error) {
	u, err := ScanUser(r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW()
		WHERE lower(email) = lower($1) RETURNING `+userColumns, email, role.String()))
	if database.IsUniqueViolation(err) && database.ViolatedConstraint(err) == singleOwnerIndex {
		return nil, ErrOwnerExists
	}
	return u, err
}
