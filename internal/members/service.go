package members

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/pkg/cache"
)

var ErrNotFound = errors.New("member not found")

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
	historySize     = 20
)

// Profile is the editable part of a member.
type Profile struct {
	FullName string `json:"full_name"`
	Bio      string `json:"bio"`
	Locale   string `json:"locale"`
}

// Validate checks profile fields.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Bio, validation.Length(0, 1000)),
		validation.Field(&p.Locale, validation.Length(0, 35), validation.By(validLocale)),
	)
}

func validLocale(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := language.Parse(s); err != nil {
		return errors.New("must be a BCP 47 language tag")
	}
	return nil
}

// ProfileView is a member profile with gamification progress.
type ProfileView struct {
	models.UserPublic
	PointsToNextLevel int                  `json:"points_to_next_level"`
	MaxLevel          bool                 `json:"max_level"`
	RecentPoints      []models.PointsEvent `json:"recent_points,omitempty"`
}

// Store persists members.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) error
	SetAvatar(ctx context.Context, id uuid.UUID, url, key string) (string, error)
}

// PointsHistory loads a member's ledger entries.
type PointsHistory interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointsEvent, error)
}

// Service implements the member directory.
type Service struct {
	store   Store
	history PointsHistory
	views   *cache.Views
	ttl     time.Duration
	logger  *zap.Logger
}

// NewService creates a members service. history and views may be nil.
func NewService(store Store, history PointsHistory, views *cache.Views, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, history: history, views: views, ttl: ttl, logger: logger}
}

// List returns a page of members without private fields.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.UserPublic, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.TrimSpace(f.Query)
	key := cache.Key(cache.ScopeMembers, f.Query, f.Role, f.Limit, f.Offset)
	var cached []models.UserPublic
	if s.views.Get(ctx, key, &cached) {
		return cached, nil
	}
	users, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	s.views.Set(ctx, key, out, s.ttl)
	return out, nil
}

// Profile returns a member's public profile with level progress.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*ProfileView, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &ProfileView{
		UserPublic:        u.ToPublic(),
		PointsToNextLevel: points.PointsToNextLevel(u.Points),
		MaxLevel:          u.Level >= points.MaxLevel,
	}
	if s.history != nil {
		recent, err := s.history.History(ctx, id, historySize)
		if err != nil {
			s.logger.Warn("load points history", zap.String("user_id", id.String()), zap.Error(err))
		} else {
			view.RecentPoints = recent
		}
	}
	return view, nil
}

// UpdateProfile changes the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*models.User, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProfile(ctx, id, p); err != nil {
		return nil, err
	}
	s.views.Invalidate(ctx, cache.ScopeMembers, cache.ScopeLeaderboard)
	return s.store.Get(ctx, id)
}

// SetAvatar records a new avatar and returns the key of the one it replaced.
func (s *Service) SetAvatar(ctx context.Context, id uuid.UUID, url, key string) (string, error) {
	prev, err := s.store.SetAvatar(ctx, id, url, key)
	if err != nil {
		return "", err
	}
	s.views.Invalidate(ctx, cache.ScopeMembers, cache.ScopeLeaderboard)
	return prev, nil
}
