package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/mailer"
	"github.com/aura-community/backend/pkg/queue"
)

// Occurrences expands the calendar for a window.
type Occurrences interface {
	Between(ctx context.Context, from, to time.Time) ([]models.EventOccurrence, error)
}

// Recipients lists members who receive reminders.
type Recipients interface {
	ActiveMembers(ctx context.Context) ([]models.User, error)
}

// EmailQueue enqueues outgoing mail.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Guard claims a key once; later claims of the same key fail until it expires.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisGuard implements Guard with SETNX.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a SETNX-backed guard.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// Claim implements Guard.
func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, 1, ttl).Result()
}

// ReminderOptions configures a ReminderScheduler.
type ReminderOptions struct {
	// Lead is how far ahead of an occurrence reminders go out.
	Lead time.Duration
	// Interval is the time between ticks.
	Interval time.Duration
	// Location formats the start time in reminder bodies.
	Location *time.Location
}

// ReminderScheduler enqueues one reminder email per member for each upcoming occurrence.
type ReminderScheduler struct {
	calendar   Occurrences
	recipients Recipients
	emails     EmailQueue
	guard      Guard
	opts       ReminderOptions
	logger     *zap.Logger
	now        func() time.Time
}

// NewReminderScheduler creates a reminder scheduler.
func NewReminderScheduler(calendar Occurrences, recipients Recipients, emails EmailQueue, guard Guard, opts ReminderOptions, logger *zap.Logger) *ReminderScheduler {
	if opts.Lead <= 0 {
		opts.Lead = time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		calendar:   calendar,
		recipients: recipients,
		emails:     emails,
		guard:      guard,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// ReminderKey identifies one occurrence of one event.
func ReminderKey(eventID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("reminder:%s:%d", eventID, start.Unix())
}

// Tick sends reminders for occurrences starting within the lead window and returns how
// many occurrences it claimed. Each occurrence is claimed at most once across workers.
func (s *ReminderScheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	occs, err := s.calendar.Between(ctx, now, now.Add(s.opts.Lead))
	if err != nil {
		return 0, fmt.Errorf("expand occurrences: %w", err)
	}
	var members []models.User
	claimed := 0
	for _, occ := range occs {
		if occ.OccurrenceDate.Before(now) {
			continue
		}
		key := ReminderKey(occ.Event.ID, occ.OccurrenceDate)
		ok, err := s.guard.Claim(ctx, key, s.opts.Lead+s.opts.Interval)
		if err != nil {
			return claimed, fmt.Errorf("claim %s: %w", key, err)
		}
		if !ok {
			continue
		}
		claimed++
		if members == nil {
			if members, err = s.recipients.ActiveMembers(ctx); err != nil {
				return claimed, fmt.Errorf("load recipients: %w", err)
			}
		}
		s.enqueue(ctx, occ, members)
	}
	return claimed, nil
}

func (s *ReminderScheduler) enqueue(ctx context.Context, occ models.EventOccurrence, members []models.User) {
	e := occ.Event
	when := occ.OccurrenceDate.In(s.opts.Location).Format("Mon 2 Jan 15:04 MST")
	body := mailer.EventReminderHTML(e.Title, when, e.Location)
	eventID := e.ID
	for i := range members {
		u := members[i]
		if u.Email == "" {
			continue
		}
		userID := u.ID
		err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      models.EmailTypeEventReminder,
			UserID:         &userID,
			EventID:        &eventID,
			RecipientEmail: u.Email,
			Subject:        "Reminder: " + e.Title,
			BodyHTML:       body,
		})
		if err != nil {
			s.logger.Warn("enqueue reminder", zap.String("event_id", eventID.String()), zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	s.logger.Info("event reminders queued", zap.String("event_id", eventID.String()),
		zap.Time("occurrence", occ.OccurrenceDate), zap.Int("recipients", len(members)))
}

// Run ticks until ctx is done.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reminder tick", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}
