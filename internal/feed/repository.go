package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

const postColumns = `p.id, p.author_id, p.title, p.content, p.content_text, COALESCE(p.category,''),
	COALESCE(p.attachment_url,''), p.pinned, p.edited,
	(SELECT COUNT(*) FROM likes l WHERE l.target_type = 'post' AND l.target_id = p.id),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	p.created_at, p.updated_at`

const commentColumns = `c.id, c.post_id, c.author_id, c.parent_id, c.content, c.edited,
	(SELECT COUNT(*) FROM likes l WHERE l.target_type = 'comment' AND l.target_id = c.id),
	c.created_at, c.updated_at`

// PostColumns is the select list ScanPost expects; the posts table must be aliased p.
func PostColumns() string { return postColumns }

// CommentColumns is the select list ScanComment expects; the comments table must be aliased c.
func CommentColumns() string { return commentColumns }

// ScanPost scans one post row. pgx.ErrNoRows becomes ErrPostNotFound.
func ScanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.ContentText, &p.Category,
		&p.AttachmentURL, &p.Pinned, &p.Edited, &p.LikeCount, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ScanComment scans one comment row. pgx.ErrNoRows becomes ErrCommentNotFound.
func ScanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.Edited, &c.LikeCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListFilter selects a page of the feed.
type ListFilter struct {
	Category string
	AuthorID *uuid.UUID
	Before   *time.Time
	Limit    int
}

// Repository handles posts, comments and likes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPosts returns pinned posts first, then newest first.
func (r *Repository) ListPosts(ctx context.Context, f ListFilter) ([]models.Post, error) {
	args := []interface{}{}
	q := `SELECT ` + postColumns + ` FROM posts p WHERE TRUE`
	if f.Category != "" {
		args = append(args, f.Category)
		q += fmt.Sprintf(" AND p.category = $%d", len(args))
	}
	if f.AuthorID != nil {
		args = append(args, *f.AuthorID)
		q += fmt.Sprintf(" AND p.author_id = $%d", len(args))
	}
	if f.Before != nil {
		args = append(args, *f.Before)
		q += fmt.Sprintf(" AND p.created_at < $%d", len(args))
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY p.pinned DESC, p.created_at DESC, p.id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Post{}
	for rows.Next() {
		p, err := ScanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// GetPost returns a post by id.
func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return ScanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id))
}

// CreatePost inserts p and fills its id and timestamps.
func (r *Repository) CreatePost(ctx context.Context, p *models.Post) error {
	return r.pool.QueryRow(ctx, `INSERT INTO posts (author_id, title, content, content_text, category)
		VALUES ($1, $2, $3, $4, NULLIF($5,'')) RETURNING id, created_at, updated_at`,
		p.AuthorID, p.Title, p.Content, p.ContentText, p.Category,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdatePost rewrites a post's body and marks it edited.
func (r *Repository) UpdatePost(ctx context.Context, p *models.Post) error {
	err := r.pool.QueryRow(ctx, `UPDATE posts SET title = $2, content = $3, content_text = $4,
			category = NULLIF($5,''), edited = TRUE, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		p.ID, p.Title, p.Content, p.ContentText, p.Category,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		return err
	}
	p.Edited = true
	return nil
}

// DeletePost removes a post with its comments and likes.
func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return DeletePostTx(ctx, tx, id)
	})
}

// DeletePostTx removes a post, its comments and every like on either, using q.
func DeletePostTx(ctx context.Context, q database.Querier, id uuid.UUID) error {
	if _, err := q.Exec(ctx, `DELETE FROM likes WHERE (target_type = 'post' AND target_id = $1)
		OR (target_type = 'comment' AND target_id IN (SELECT id FROM comments WHERE post_id = $1))`, id); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetPinned pins or unpins a post.
func (r *Repository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE posts SET pinned = $2 WHERE id = $1`, id, pinned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetAttachment stores the attachment URL of a post.
func (r *Repository) SetAttachment(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE posts SET attachment_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ListComments returns a post's comments oldest first.
func (r *Repository) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.post_id = $1 ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		c, err := ScanComment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// GetComment returns a comment by id.
func (r *Repository) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return ScanComment(r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.id = $1`, id))
}

// CreateComment inserts c and fills its id and timestamps.
func (r *Repository) CreateComment(ctx context.Context, c *models.Comment) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO comments (post_id, author_id, parent_id, content)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		c.PostID, c.AuthorID, c.ParentID, c.Content,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrPostNotFound
	}
	return err
}

// UpdateComment rewrites a comment and marks it edited.
func (r *Repository) UpdateComment(ctx context.Context, c *models.Comment) error {
	err := r.pool.QueryRow(ctx, `UPDATE comments SET content = $2, edited = TRUE, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, c.ID, c.Content).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommentNotFound
		}
		return err
	}
	c.Edited = true
	return nil
}

// DeleteComment removes a comment, its replies and their likes.
func (r *Repository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return DeleteCommentTx(ctx, tx, id)
	})
}

// DeleteCommentTx removes a comment, its reply tree and the likes on them, using q.
func DeleteCommentTx(ctx context.Context, q database.Querier, id uuid.UUID) error {
	if _, err := q.Exec(ctx, `WITH RECURSIVE tree AS (
			SELECT id FROM comments WHERE id = $1
			UNION ALL SELECT c.id FROM comments c JOIN tree t ON c.parent_id = t.id
		)
		DELETE FROM likes WHERE target_type = 'comment' AND target_id IN (SELECT id FROM tree)`, id); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// AuthorOf returns the author of a likeable target.
func (r *Repository) AuthorOf(ctx context.Context, target models.LikeTarget, id uuid.UUID) (uuid.UUID, error) {
	var q string
	var notFound error
	switch target {
	case models.LikeTargetPost:
		q, notFound = `SELECT author_id FROM posts WHERE id = $1`, ErrPostNotFound
	case models.LikeTargetComment:
		q, notFound = `SELECT author_id FROM comments WHERE id = $1`, ErrCommentNotFound
	default:
		return uuid.Nil, ErrInvalidTarget
	}
	var author uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).Scan(&author)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, notFound
	}
	return author, err
}

// Like records a like. A second like on the same target returns ErrAlreadyLiked.
// The like_awards marker survives unlikes, so first is true only for the member's first like ever.
func (r *Repository) Like(ctx context.Context, userID uuid.UUID, target models.LikeTarget, id uuid.UUID) (bool, error) {
	var marked uuid.UUID
	err := r.pool.QueryRow(ctx, `WITH liked AS (
			INSERT INTO likes (user_id, target_type, target_id) VALUES ($1, $2, $3)
			RETURNING user_id, target_type, target_id
		)
		INSERT INTO like_awards (user_id, target_type, target_id)
		SELECT user_id, target_type, target_id FROM liked
		ON CONFLICT DO NOTHING
		RETURNING user_id`, userID, string(target), id).Scan(&marked)
	switch {
	case database.IsUniqueViolation(err):
		return false, ErrAlreadyLiked
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Unlike removes a like. Returns ErrNotLiked when there was none.
func (r *Repository) Unlike(ctx context.Context, userID uuid.UUID, target models.LikeTarget, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND target_type = $2 AND target_id = $3`,
		userID, string(target), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotLiked
	}
	return nil
}
