// Package feed implements community posts, comments and likes.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/internal/richtext"
	"github.com/aura-community/backend/pkg/cache"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrParentMismatch  = errors.New("parent comment belongs to another post")
	ErrAlreadyLiked    = errors.New("already liked")
	ErrNotLiked        = errors.New("not liked")
	ErrInvalidTarget   = errors.New("invalid like target")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PostInput is the body for creating or editing a post.
type PostInput struct {
	Title    string          `json:"title" binding:"required,max=200"`
	Content  json.RawMessage `json:"content" binding:"required"`
	Category string          `json:"category" binding:"max=50"`
}

// Validate checks the post body.
func (in PostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Category, validation.Length(0, 50)),
	)
}

// CommentInput is the body for creating or editing a comment.
type CommentInput struct {
	Content  string     `json:"content" binding:"required,max=5000"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// Validate checks the comment body.
func (in CommentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// Store persists feed content.
type Store interface {
	ListPosts(ctx context.Context, f ListFilter) ([]models.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post) error
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error
	SetAttachment(ctx context.Context, id uuid.UUID, url string) error
	ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	UpdateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id uuid.UUID) error
	AuthorOf(ctx context.Context, target models.LikeTarget, id uuid.UUID) (uuid.UUID, error)
	// Like reports whether this is the first time userID has liked the target.
	Like(ctx context.Context, userID uuid.UUID, target models.LikeTarget, id uuid.UUID) (bool, error)
	Unlike(ctx context.Context, userID uuid.UUID, target models.LikeTarget, id uuid.UUID) error
}

// Moderator edits and removes other members' content. Its edits are silent.
type Moderator interface {
	EditPost(ctx context.Context, actor permissions.Actor, id uuid.UUID, in PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, actor permissions.Actor, id uuid.UUID) error
	EditComment(ctx context.Context, actor permissions.Actor, id uuid.UUID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor permissions.Actor, id uuid.UUID) error
}

// Awarder grants points without failing the caller.
type Awarder interface {
	AwardQuietly(ctx context.Context, userID uuid.UUID, action points.Action)
}

// Broadcaster pushes realtime events to the community.
type Broadcaster interface {
	PublishCommunity(event string, payload interface{})
}

// Service implements the feed.
type Service struct {
	store     Store
	moderator Moderator
	points    Awarder
	hub       Broadcaster
	views     *cache.Views
	logger    *zap.Logger
}

// NewService creates a feed service. moderator, awarder, hub and views may be nil.
func NewService(store Store, moderator Moderator, awarder Awarder, hub Broadcaster, views *cache.Views, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, moderator: moderator, points: awarder, hub: hub, views: views, logger: logger}
}

// ClampPageSize bounds a requested page size.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// ListPosts returns a page of the feed.
func (s *Service) ListPosts(ctx context.Context, f ListFilter) ([]models.Post, error) {
	f.Limit = ClampPageSize(f.Limit)
	return s.store.ListPosts(ctx, f)
}

// GetPost returns one post.
func (s *Service) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.store.GetPost(ctx, id)
}

// CreatePost publishes a post and awards POST_CREATED to its author.
func (s *Service) CreatePost(ctx context.Context, actor permissions.Actor, in PostInput) (*models.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p := &models.Post{
		AuthorID:    actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		ContentText: richtext.PlainText(in.Content),
		Category:    in.Category,
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	s.award(ctx, actor.ID, points.ActionPostCreated)
	s.views.Invalidate(ctx, cache.ScopeFeed)
	if s.hub != nil {
		s.hub.PublishCommunity(realtime.EventPostCreated, p)
	}
	return p, nil
}

// UpdatePost lets authors edit their own post (marked edited). Anyone else goes through the moderator.
func (s *Service) UpdatePost(ctx context.Context, actor permissions.Actor, id uuid.UUID, in PostInput) (*models.Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actor.ID {
		if s.moderator == nil {
			return nil, permissions.ErrNotAuthorized
		}
		return s.moderator.EditPost(ctx, actor, id, in)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(in.Title)
	p.Content = in.Content
	p.ContentText = richtext.PlainText(in.Content)
	p.Category = in.Category
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, err
	}
	s.views.Invalidate(ctx, cache.ScopeFeed)
	return p, nil
}

// DeletePost removes the actor's own post, or delegates to the moderator.
func (s *Service) DeletePost(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != actor.ID {
		if s.moderator == nil {
			return permissions.ErrNotAuthorized
		}
		return s.moderator.DeletePost(ctx, actor, id)
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.views.Invalidate(ctx, cache.ScopeFeed)
	return nil
}

// SetPinned pins or unpins a post. Requires a moderator.
func (s *Service) SetPinned(ctx context.Context, actor permissions.Actor, id uuid.UUID, pinned bool) error {
	if err := actor.Require(permissions.CanModerateContent); err != nil {
		return err
	}
	if err := s.store.SetPinned(ctx, id, pinned); err != nil {
		return err
	}
	s.views.Invalidate(ctx, cache.ScopeFeed)
	return nil
}

// AttachToPost records an uploaded attachment on the actor's own post.
func (s *Service) AttachToPost(ctx context.Context, actor permissions.Actor, id uuid.UUID, url string) error {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != actor.ID {
		return permissions.ErrNotAuthorized
	}
	return s.store.SetAttachment(ctx, id, url)
}

// ListComments returns a post's comments.
func (s *Service) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, postID)
}

// CreateComment adds a comment (optionally a reply) and awards COMMENT_CREATED.
func (s *Service) CreateComment(ctx context.Context, actor permissions.Actor, postID uuid.UUID, in CommentInput) (*models.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, ErrParentMismatch
		}
	}
	c := &models.Comment{PostID: postID, AuthorID: actor.ID, ParentID: in.ParentID, Content: strings.TrimSpace(in.Content)}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.award(ctx, actor.ID, points.ActionCommentCreated)
	s.views.Invalidate(ctx, cache.ScopeFeed)
	return c, nil
}

// UpdateComment lets authors edit their own comment; others go through the moderator.
func (s *Service) UpdateComment(ctx context.Context, actor permissions.Actor, id uuid.UUID, in CommentInput) (*models.Comment, error) {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.ID {
		if s.moderator == nil {
			return nil, permissions.ErrNotAuthorized
		}
		return s.moderator.EditComment(ctx, actor, id, in.Content)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c.Content = strings.TrimSpace(in.Content)
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes the actor's own comment, or delegates to the moderator.
func (s *Service) DeleteComment(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.ID {
		if s.moderator == nil {
			return permissions.ErrNotAuthorized
		}
		return s.moderator.DeleteComment(ctx, actor, id)
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.views.Invalidate(ctx, cache.ScopeFeed)
	return nil
}

// Like records a like and awards LIKE_RECEIVED to the content's author unless they liked their own content.
// A member's like pays out once per target; liking again after an unlike awards nothing.
func (s *Service) Like(ctx context.Context, actor permissions.Actor, target models.LikeTarget, id uuid.UUID) error {
	author, err := s.store.AuthorOf(ctx, target, id)
	if err != nil {
		return err
	}
	first, err := s.store.Like(ctx, actor.ID, target, id)
	if err != nil {
		return err
	}
	if first && author != actor.ID {
		s.award(ctx, author, points.ActionLikeReceived)
	}
	return nil
}

// Unlike removes a like. Points already granted are kept.
func (s *Service) Unlike(ctx context.Context, actor permissions.Actor, target models.LikeTarget, id uuid.UUID) error {
	if target != models.LikeTargetPost && target != models.LikeTargetComment {
		return ErrInvalidTarget
	}
	return s.store.Unlike(ctx, actor.ID, target, id)
}

func (s *Service) award(ctx context.Context, userID uuid.UUID, action points.Action) {
	if s.points != nil {
		s.points.AwardQuietly(ctx, userID, action)
	}
}
