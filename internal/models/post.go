package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Post is a feed post. Content is the editor's JSON document; ContentText is its plain-text extraction.
type Post struct {
	ID            uuid.UUID       `json:"id"`
	AuthorID      uuid.UUID       `json:"author_id"`
	Title         string          `json:"title"`
	Content       json.RawMessage `json:"content"`
	ContentText   string          `json:"-"`
	Category      string          `json:"category,omitempty"`
	AttachmentURL string          `json:"attachment_url,omitempty"`
	Pinned        bool            `json:"pinned"`
	Edited        bool            `json:"edited"`
	LikeCount     int             `json:"like_count"`
	CommentCount  int             `json:"comment_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        uuid.UUID  `json:"id"`
	PostID    uuid.UUID  `json:"post_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Content   string     `json:"content"`
	Edited    bool       `json:"edited"`
	LikeCount int        `json:"like_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LikeTarget is the kind of content a like points at.
type LikeTarget string

const (
	LikeTargetPost    LikeTarget = "post"
	LikeTargetComment LikeTarget = "comment"
)

// Like is unique per (user, target type, target id).
type Like struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	TargetType LikeTarget `json:"target_type"`
	TargetID   uuid.UUID  `json:"target_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
