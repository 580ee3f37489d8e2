// Package search runs full-text queries across community content.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind is a searchable content type.
type Kind string

const (
	KindPost   Kind = "post"
	KindCourse Kind = "course"
	KindLesson Kind = "lesson"
	KindEvent  Kind = "event"
	KindMember Kind = "member"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
	minQueryLen  = 2
	maxQueryLen  = 200
)

var (
	ErrQueryTooShort = errors.New("query must be at least 2 characters")
	ErrQueryTooLong  = errors.New("query must be at most 200 characters")
	ErrInvalidKind   = errors.New("invalid search type")
)

// AllKinds lists every searchable type.
func AllKinds() []Kind {
	return []Kind{KindPost, KindCourse, KindLesson, KindEvent, KindMember}
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrInvalidKind
}

// Hit is one ranked search result.
type Hit struct {
	Type      Kind      `json:"type"`
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Rank      float32   `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
}

// Document expressions must match the GIN indexes in the schema.
var sources = map[Kind]string{
	KindPost: `SELECT 'post' AS type, id, title, content_text AS body, created_at,
		to_tsvector('simple', title || ' ' || content_text) AS doc FROM posts`,
	KindCourse: `SELECT 'course', id, title, description, created_at,
		to_tsvector('simple', title || ' ' || description) FROM courses WHERE published`,
	KindLesson: `SELECT 'lesson', l.id, l.title, l.content_text, l.created_at,
		to_tsvector('simple', l.title || ' ' || l.content_text) FROM lessons l
		JOIN course_modules m ON m.id = l.module_id JOIN courses c ON c.id = m.course_id WHERE c.published`,
	KindEvent: `SELECT 'event', id, title, description_text, created_at,
		to_tsvector('simple', title || ' ' || description_text) FROM events`,
	KindMember: `SELECT 'member', id, full_name, bio, created_at,
		to_tsvector('simple', full_name || ' ' || bio) FROM users WHERE banned_at IS NULL`,
}

// buildQuery unions the requested sources and ranks matches against $1.
func buildQuery(kinds []Kind) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, sources[k])
	}
	return fmt.Sprintf(`WITH q AS (SELECT plainto_tsquery('simple', $1) AS query),
	docs AS (%s)
	SELECT docs.type, docs.id, docs.title,
		ts_headline('simple', docs.body, q.query, 'MaxWords=30, MinWords=10, StartSel=<mark>, StopSel=</mark>'),
		ts_rank(docs.doc, q.query) AS rank, docs.created_at
	FROM docs, q
	WHERE docs.doc @@ q.query
	ORDER BY rank DESC, docs.created_at DESC
	LIMIT $2`, strings.Join(parts, "\n\tUNION ALL\n\t"))
}

// Repository runs searches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a search repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Search returns up to limit hits for query across kinds.
func (r *Repository) Search(ctx context.Context, query string, kinds []Kind, limit int) ([]Hit, error) {
	rows, err := r.pool.Query(ctx, buildQuery(kinds), query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var kind string
		if err := rows.Scan(&kind, &h.ID, &h.Title, &h.Snippet, &h.Rank, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Type = Kind(kind)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Searcher runs a full-text query.
type Searcher interface {
	Search(ctx context.Context, query string, kinds []Kind, limit int) ([]Hit, error)
}

// Request is a validated search.
type Request struct {
	Query string
	Kinds []Kind
	Limit int
}

// NewRequest normalises raw query parameters. An empty kind searches everything.
func NewRequest(query, kind string, limit int) (Request, error) {
	query = strings.Join(strings.Fields(query), " ")
	if len([]rune(query)) < minQueryLen {
		return Request{}, ErrQueryTooShort
	}
	if len([]rune(query)) > maxQueryLen {
		return Request{}, ErrQueryTooLong
	}
	req := Request{Query: query, Kinds: AllKinds(), Limit: limit}
	if kind != "" {
		k, err := ParseKind(kind)
		if err != nil {
			return Request{}, err
		}
		req.Kinds = []Kind{k}
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return req, nil
}
