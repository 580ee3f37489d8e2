package points

import (
	"context"
	"errors"
	"time"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/cache"
)

// Period selects the leaderboard window.
type Period string

const (
	PeriodAllTime Period = "all"
	PeriodMonth   Period = "month"
	PeriodToday   Period = "today"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// LeaderboardReader loads ranked rows.
type LeaderboardReader interface {
	AllTime(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Since(ctx context.Context, from time.Time, limit int) ([]models.LeaderboardEntry, error)
}

// Leaderboards serves cached leaderboards.
type Leaderboards struct {
	repo  LeaderboardReader
	views *cache.Views
	ttl   time.Duration
	loc   *time.Location
	now   func() time.Time
}

// NewLeaderboards creates a leaderboard service. Day and month windows start at midnight in loc.
func NewLeaderboards(repo LeaderboardReader, views *cache.Views, ttl time.Duration, loc *time.Location) *Leaderboards {
	if loc == nil {
		loc = time.UTC
	}
	return &Leaderboards{repo: repo, views: views, ttl: ttl, loc: loc, now: time.Now}
}

// WindowStart returns the start of period relative to now; zero for all-time.
func WindowStart(period Period, now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	switch period {
	case PeriodAllTime:
		return time.Time{}, nil
	case PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodToday:
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	return time.Time{}, ErrInvalidPeriod
}

// ClampLimit keeps limit within (0, MaxLeaderboardLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

// Get returns the leaderboard for period.
func (s *Leaderboards) Get(ctx context.Context, period Period, limit int) ([]models.LeaderboardEntry, error) {
	limit = ClampLimit(limit)
	from, err := WindowStart(period, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	key := cache.Key(cache.ScopeLeaderboard, period, limit, from.Unix())
	var list []models.LeaderboardEntry
	if s.views.Get(ctx, key, &list) {
		return list, nil
	}
	if period == PeriodAllTime {
		list, err = s.repo.AllTime(ctx, limit)
	} else {
		list, err = s.repo.Since(ctx, from, limit)
	}
	if err != nil {
		return nil, err
	}
	s.views.Set(ctx, key, list, s.ttl)
	return list, nil
}
