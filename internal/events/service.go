package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/internal/richtext"
	"github.com/aura-community/backend/pkg/cache"
	"github.com/aura-community/backend/pkg/metrics"
)

var (
	ErrNotFound      = errors.New("event not found")
	ErrRangeTooLarge = errors.New("date range too large")
	ErrInvalidRange  = errors.New("range end is before range start")
)

const (
	// MaxUpcomingDays bounds GET /events/upcoming.
	MaxUpcomingDays = 90
	// MaxRangeDays bounds arbitrary occurrence queries.
	MaxRangeDays = 366
)

// Tx is the set of writes one event mutation performs.
type Tx interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Insert(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	Audit(ctx context.Context, entry audit.Entry) error
}

// Store loads events and runs mutations in a transaction.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListInWindow(ctx context.Context, from, to time.Time) ([]*models.Event, error)
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Broadcaster pushes realtime events to the community.
type Broadcaster interface {
	PublishCommunity(event string, payload interface{})
}

// Awarder grants points without failing the caller.
type Awarder interface {
	AwardQuietly(ctx context.Context, userID uuid.UUID, action points.Action)
}

// Input is the body for creating or replacing an event.
type Input struct {
	Title         string            `json:"title"`
	Description   json.RawMessage   `json:"description"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Location      string            `json:"location"`
	LocationURL   string            `json:"location_url"`
	Recurrence    models.Recurrence `json:"recurrence"`
	RecurrenceEnd *time.Time        `json:"recurrence_end"`
}

// Validate checks field and cross-field rules. An empty recurrence means NONE.
func (in *Input) Validate() error {
	if in.Recurrence == "" {
		in.Recurrence = models.RecurrenceNone
	}
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.StartTime, validation.Required),
		validation.Field(&in.EndTime, validation.Required, validation.By(func(interface{}) error {
			if in.EndTime.Before(in.StartTime) {
				return errors.New("must not be before start_time")
			}
			return nil
		})),
		validation.Field(&in.Location, validation.Length(0, 300)),
		validation.Field(&in.LocationURL, validation.Length(0, 2000)),
		validation.Field(&in.Recurrence, validation.In(models.RecurrenceNone, models.RecurrenceWeekly, models.RecurrenceMonthly)),
		validation.Field(&in.RecurrenceEnd, validation.By(func(interface{}) error {
			if in.RecurrenceEnd == nil {
				return nil
			}
			if in.Recurrence == models.RecurrenceNone {
				return errors.New("only allowed for recurring events")
			}
			if in.RecurrenceEnd.Before(in.StartTime) {
				return errors.New("must not be before start_time")
			}
			return nil
		})),
	)
}

func (in *Input) apply(e *models.Event) {
	e.Title = in.Title
	e.Description = in.Description
	e.DescriptionText = richtext.PlainText(in.Description)
	e.StartTime = in.StartTime
	e.EndTime = in.EndTime
	e.Location = in.Location
	e.LocationURL = in.LocationURL
	e.Recurrence = in.Recurrence
	e.RecurrenceEnd = in.RecurrenceEnd
}

// ChangedPayload is the realtime body of an event_changed event.
type ChangedPayload struct {
	EventID uuid.UUID `json:"event_id"`
	Change  string    `json:"change"`
}

// Service implements event reads and admin mutations.
type Service struct {
	store    Store
	expander Expander
	views    *cache.Views
	cacheTTL time.Duration
	hub      Broadcaster
	points   Awarder
	metrics  *metrics.Metrics
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// Options configures a Service. Nil collaborators are skipped.
type Options struct {
	Expander Expander
	Views    *cache.Views
	CacheTTL time.Duration
	Hub      Broadcaster
	Points   Awarder
	Metrics  *metrics.Metrics
	Location *time.Location
	Logger   *zap.Logger
}

// NewService creates an event service.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:    store,
		expander: opts.Expander,
		views:    opts.Views,
		cacheTTL: opts.CacheTTL,
		hub:      opts.Hub,
		points:   opts.Points,
		metrics:  opts.Metrics,
		loc:      opts.Location,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.expander.Location == nil {
		s.expander = s.expander.In(s.loc)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	return s
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.Get(ctx, id)
}

// Month returns the occurrences in one calendar month of the service's time zone.
func (s *Service) Month(ctx context.Context, year int, month time.Month) ([]models.EventOccurrence, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidRange
	}
	key := cache.Key(cache.ScopeCalendar, "month", year, int(month))
	var cached []models.EventOccurrence
	if s.views.Get(ctx, key, &cached) {
		return cached, nil
	}
	from, to := MonthRange(year, month, s.loc)
	list, err := s.occurrences(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.views.Set(ctx, key, list, s.cacheTTL)
	return list, nil
}

// Range returns the occurrences in [from, to]. The window may span at most MaxRangeDays.
func (s *Service) Range(ctx context.Context, from, to time.Time) ([]models.EventOccurrence, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	if to.Sub(from) > MaxRangeDays*24*time.Hour {
		return nil, ErrRangeTooLarge
	}
	key := cache.Key(cache.ScopeCalendar, "range", from.Unix(), to.Unix())
	var cached []models.EventOccurrence
	if s.views.Get(ctx, key, &cached) {
		return cached, nil
	}
	list, err := s.occurrences(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.views.Set(ctx, key, list, s.cacheTTL)
	return list, nil
}

// Upcoming returns occurrences from now through the next days days.
func (s *Service) Upcoming(ctx context.Context, days int) ([]models.EventOccurrence, error) {
	if days <= 0 || days > MaxUpcomingDays {
		return nil, ErrRangeTooLarge
	}
	now := s.now().In(s.loc)
	return s.occurrences(ctx, now, now.AddDate(0, 0, days))
}

// Between expands occurrences in [from, to] without caching. Used by the reminder scheduler.
func (s *Service) Between(ctx context.Context, from, to time.Time) ([]models.EventOccurrence, error) {
	return s.occurrences(ctx, from, to)
}

func (s *Service) occurrences(ctx context.Context, from, to time.Time) ([]models.EventOccurrence, error) {
	list, err := s.store.ListInWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := s.expander.ExpandAll(list, from, to)
	if out == nil {
		out = []models.EventOccurrence{}
	}
	return out, nil
}

// Create stores a new event. Only admin-capable members may create events.
func (s *Service) Create(ctx context.Context, actor permissions.Actor, in Input) (*models.Event, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e := &models.Event{CreatedBy: actor.ID}
	in.apply(e)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Insert(ctx, e); err != nil {
			return err
		}
		return tx.Audit(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     models.AuditEventCreated,
			TargetID:   audit.Ref(e.ID),
			TargetType: audit.TargetEvent,
			Details:    audit.Change{New: e},
		})
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, models.AuditEventCreated, e.ID, "created")
	if s.points != nil {
		s.points.AwardQuietly(ctx, actor.ID, points.ActionEventCreated)
	}
	return e, nil
}

// Update replaces an event's fields.
func (s *Service) Update(ctx context.Context, actor permissions.Actor, id uuid.UUID, in Input) (*models.Event, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	var updated *models.Event
	err := s.store.WithTx(ctx, func(tx Tx) error {
		e, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		previous := *e
		in.apply(e)
		if err := tx.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return tx.Audit(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     models.AuditEventUpdated,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetEvent,
			Details:    audit.Change{Previous: previous, New: e},
		})
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, models.AuditEventUpdated, id, "updated")
	return updated, nil
}

// Delete removes an event and every occurrence it produced.
func (s *Service) Delete(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		e, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.Audit(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     models.AuditEventDeleted,
			TargetID:   audit.Ref(id),
			TargetType: audit.TargetEvent,
			Details:    audit.Change{Previous: e},
		})
	})
	if err != nil {
		return err
	}
	s.changed(ctx, models.AuditEventDeleted, id, "deleted")
	return nil
}

func (s *Service) changed(ctx context.Context, action models.AuditAction, id uuid.UUID, change string) {
	s.metrics.ModerationInc(string(action))
	s.views.Invalidate(ctx, cache.ScopeCalendar)
	if s.hub != nil {
		s.hub.PublishCommunity(realtime.EventEventChanged, ChangedPayload{EventID: id, Change: change})
	}
	s.logger.Info("event changed", zap.String("event_id", id.String()), zap.String("change", change))
}
