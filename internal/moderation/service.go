// Package moderation applies privileged actions to members, content and settings.
// Every action checks the actor's capability, loads the target, mutates it and
// writes an audit log row in one transaction, then drops affected cached views.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/feed"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/richtext"
	"github.com/aura-community/backend/internal/settings"
	"github.com/aura-community/backend/pkg/cache"
	"github.com/aura-community/backend/pkg/metrics"
)

var (
	ErrNotFound    = errors.New("target not found")
	ErrInvalidRole = errors.New("invalid role")
)

// Tx is what one moderation action may read and write.
type Tx interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetBan(ctx context.Context, id uuid.UUID, bannedAt *time.Time, reason string) error
	SetRole(ctx context.Context, id uuid.UUID, role permissions.Role) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	// ReplacePost rewrites a post without setting its edited flag.
	ReplacePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	// ReplaceComment rewrites a comment without setting its edited flag.
	ReplaceComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id uuid.UUID) error
	GetSettings(ctx context.Context) (*models.CommunitySettings, error)
	SaveSettings(ctx context.Context, s *models.CommunitySettings) error
	Audit(ctx context.Context, e audit.Entry) error
}

// Store runs fn in a transaction; getters return ErrNotFound for missing rows.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Service performs moderation actions.
type Service struct {
	store   Store
	views   *cache.Views
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a moderation service. views and m may be nil.
func NewService(store Store, views *cache.Views, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, views: views, metrics: m, logger: logger, now: time.Now}
}

// run checks allowed, then lets act load and mutate the target inside a transaction.
// act returns the audit entry to write; the actor id is filled in here.
func (s *Service) run(ctx context.Context, actor permissions.Actor, allowed func(permissions.Role) bool, act func(tx Tx) (audit.Entry, error), scopes ...string) error {
	if err := actor.Require(allowed); err != nil {
		return err
	}
	var entry audit.Entry
	err := s.store.WithTx(ctx, func(tx Tx) error {
		e, err := act(tx)
		if err != nil {
			return err
		}
		e.ActorID = actor.ID
		entry = e
		return tx.Audit(ctx, e)
	})
	if err != nil {
		return err
	}
	s.metrics.ModerationInc(string(entry.Action))
	s.views.Invalidate(ctx, scopes...)
	fields := []zap.Field{
		zap.String("action", string(entry.Action)),
		zap.String("actor_id", actor.ID.String()),
		zap.String("target_type", entry.TargetType),
	}
	if entry.TargetID != nil {
		fields = append(fields, zap.String("target_id", entry.TargetID.String()))
	}
	s.logger.Info("moderation action", fields...)
	return nil
}

// manageable loads a member the actor outranks.
func manageable(ctx context.Context, tx Tx, actor permissions.Actor, id uuid.UUID) (*models.User, error) {
	u, err := tx.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permissions.CanManageRole(actor.Role, u.Role) {
		return nil, permissions.ErrNotAuthorized
	}
	return u, nil
}

type banState struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason,omitempty"`
}

// BanUser bans a member ranked below the actor. Banned members cannot sign in or use their session.
func (s *Service) BanUser(ctx context.Context, actor permissions.Actor, userID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	return s.run(ctx, actor, permissions.CanManageMembers, func(tx Tx) (audit.Entry, error) {
		u, err := manageable(ctx, tx, actor, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := validation.Validate(reason, validation.Length(0, 500)); err != nil {
			return audit.Entry{}, validation.Errors{"reason": err}
		}
		at := s.now().UTC()
		if err := tx.SetBan(ctx, userID, &at, reason); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:     models.AuditUserBanned,
			TargetID:   audit.Ref(userID),
			TargetType: audit.TargetUser,
			Details: audit.Change{
				Previous: banState{Banned: u.IsBanned(), Reason: u.BanReason},
				New:      banState{Banned: true, Reason: reason},
			},
		}, nil
	}, cache.ScopeMembers, cache.ScopeLeaderboard)
}

// UnbanUser lifts a ban.
func (s *Service) UnbanUser(ctx context.Context, actor permissions.Actor, userID uuid.UUID) error {
	return s.run(ctx, actor, permissions.CanManageMembers, func(tx Tx) (audit.Entry, error) {
		u, err := manageable(ctx, tx, actor, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SetBan(ctx, userID, nil, ""); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:     models.AuditUserUnbanned,
			TargetID:   audit.Ref(userID),
			TargetType: audit.TargetUser,
			Details: audit.Change{
				Previous: banState{Banned: u.IsBanned(), Reason: u.BanReason},
				New:      banState{Banned: false},
			},
		}, nil
	}, cache.ScopeMembers, cache.ScopeLeaderboard)
}

// ChangeRole moves a member to role. The actor must outrank the member and may
// only hand out roles strictly below their own.
func (s *Service) ChangeRole(ctx context.Context, actor permissions.Actor, userID uuid.UUID, role permissions.Role) error {
	return s.run(ctx, actor, permissions.CanManageMembers, func(tx Tx) (audit.Entry, error) {
		u, err := manageable(ctx, tx, actor, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		if !role.Valid() {
			return audit.Entry{}, ErrInvalidRole
		}
		if !permissions.CanAssignRole(actor.Role, u.Role, role) {
			return audit.Entry{}, permissions.ErrNotAuthorized
		}
		if err := tx.SetRole(ctx, userID, role); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:     models.AuditRoleChanged,
			TargetID:   audit.Ref(userID),
			TargetType: audit.TargetUser,
			Details:    audit.Change{Previous: u.Role, New: role},
		}, nil
	}, cache.ScopeMembers)
}

type postSnapshot struct {
	Title    string          `json:"title"`
	Content  json.RawMessage `json:"content,omitempty"`
	Category string          `json:"category,omitempty"`
	AuthorID uuid.UUID       `json:"author_id"`
}

func snapshotPost(p *models.Post) postSnapshot {
	return postSnapshot{Title: p.Title, Content: p.Content, Category: p.Category, AuthorID: p.AuthorID}
}

// EditPost rewrites another member's post silently: the edited flag is left untouched.
func (s *Service) EditPost(ctx context.Context, actor permissions.Actor, id uuid.UUID, in feed.PostInput) (*models.Post, error) {
	var edited *models.Post
	err := s.run(ctx, actor, permissions.CanModerateContent, func(tx Tx) (audit.Entry, error) {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := in.Validate(); err != nil {
			return audit.Entry{}, err
		}
		previous := snapshotPost(p)
		p.Title = strings.TrimSpace(in.Title)
		p.Content = in.Content
		p.ContentText = richtext.PlainText(in.Content)
		p.Category = in.Category
		if err := tx.ReplacePost(ctx, p); err != nil {
			return audit.Entry{}, err
		}
		edited = p
		return audit.Entry{
			Action:     models.AuditPostEdited,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetPost,
			Details:    audit.Change{Previous: previous, New: snapshotPost(p)},
		}, nil
	}, cache.ScopeFeed)
	return edited, err
}

// DeletePost removes another member's post with its comments and likes.
func (s *Service) DeletePost(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	return s.run(ctx, actor, permissions.CanModerateContent, func(tx Tx) (audit.Entry, error) {
		p, err := tx.GetPost(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := tx.DeletePost(ctx, id); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:     models.AuditPostDeleted,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetPost,
			Details:    audit.Change{Previous: snapshotPost(p)},
		}, nil
	}, cache.ScopeFeed)
}

type commentSnapshot struct {
	Content  string    `json:"content"`
	PostID   uuid.UUID `json:"post_id"`
	AuthorID uuid.UUID `json:"author_id"`
}

// EditComment rewrites another member's comment silently.
func (s *Service) EditComment(ctx context.Context, actor permissions.Actor, id uuid.UUID, content string) (*models.Comment, error) {
	var edited *models.Comment
	err := s.run(ctx, actor, permissions.CanModerateContent, func(tx Tx) (audit.Entry, error) {
		c, err := tx.GetComment(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		in := feed.CommentInput{Content: content}
		if err := in.Validate(); err != nil {
			return audit.Entry{}, err
		}
		previous := c.Content
		c.Content = strings.TrimSpace(content)
		if err := tx.ReplaceComment(ctx, c); err != nil {
			return audit.Entry{}, err
		}
		edited = c
		return audit.Entry{
			Action:     models.AuditCommentEdited,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetComment,
			Details: audit.Change{
				Previous: commentSnapshot{Content: previous, PostID: c.PostID, AuthorID: c.AuthorID},
				New:      commentSnapshot{Content: c.Content, PostID: c.PostID, AuthorID: c.AuthorID},
			},
		}, nil
	}, cache.ScopeFeed)
	return edited, err
}

// DeleteComment removes another member's comment and its replies.
func (s *Service) DeleteComment(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	return s.run(ctx, actor, permissions.CanModerateContent, func(tx Tx) (audit.Entry, error) {
		c, err := tx.GetComment(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := tx.DeleteComment(ctx, id); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:     models.AuditCommentDeleted,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetComment,
			Details:    audit.Change{Previous: commentSnapshot{Content: c.Content, PostID: c.PostID, AuthorID: c.AuthorID}},
		}, nil
	}, cache.ScopeFeed)
}

// UpdateSettings applies a partial update to the community settings and returns the result.
func (s *Service) UpdateSettings(ctx context.Context, actor permissions.Actor, in settings.Input) (*models.CommunitySettings, error) {
	var saved *models.CommunitySettings
	err := s.run(ctx, actor, permissions.CanEditSettings, func(tx Tx) (audit.Entry, error) {
		cur, err := tx.GetSettings(ctx)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := in.Validate(); err != nil {
			return audit.Entry{}, err
		}
		previous := *cur
		next := *cur
		if in.Name != nil {
			next.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			next.Description = *in.Description
		}
		if in.IsPrivate != nil {
			next.IsPrivate = *in.IsPrivate
		}
		if in.WelcomeMessage != nil {
			next.WelcomeMessage = *in.WelcomeMessage
		}
		if in.LogoURL != nil {
			next.LogoURL = *in.LogoURL
		}
		if in.LogoKey != nil {
			next.LogoKey = *in.LogoKey
		}
		if err := tx.SaveSettings(ctx, &next); err != nil {
			return audit.Entry{}, err
		}
		saved = &next
		return audit.Entry{
			Action:     models.AuditSettingsUpdated,
			TargetType: audit.TargetSettings,
			Details:    audit.Change{Previous: previous, New: next},
		}, nil
	}, cache.ScopeSettings)
	return saved, err
}
