package points

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/realtime"
	"github.com/aura-community/backend/pkg/mailer"
	"github.com/aura-community/backend/pkg/queue"
)

// Broadcaster pushes realtime events.
type Broadcaster interface {
	PublishUser(userID uuid.UUID, event string, payload interface{})
	PublishCommunity(event string, payload interface{})
}

// EmailQueue enqueues outgoing mail.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// MemberLookup loads a member by id.
type MemberLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Announcer tells the member and the community about level-ups.
type Announcer struct {
	hub    Broadcaster
	emails EmailQueue
	users  MemberLookup
	logger *zap.Logger
}

// NewAnnouncer creates a LevelUpNotifier; hub and emails may be nil.
func NewAnnouncer(hub Broadcaster, emails EmailQueue, users MemberLookup, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{hub: hub, emails: emails, users: users, logger: logger}
}

// LevelUpPayload is the realtime body of a level_up event.
type LevelUpPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	FullName string    `json:"full_name"`
	Level    int       `json:"level"`
	Points   int       `json:"points"`
}

// LevelUp implements LevelUpNotifier.
func (a *Announcer) LevelUp(ctx context.Context, userID uuid.UUID, level, points int) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		a.logger.Warn("level up: load member", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	payload := LevelUpPayload{UserID: userID, FullName: user.FullName, Level: level, Points: points}
	if a.hub != nil {
		a.hub.PublishUser(userID, realtime.EventLevelUp, payload)
		a.hub.PublishCommunity(realtime.EventLevelUp, payload)
	}
	if a.emails == nil {
		return
	}
	err = a.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeLevelUp,
		UserID:         &userID,
		RecipientEmail: user.Email,
		Subject:        fmt.Sprintf("You reached level %d", level),
		BodyHTML:       mailer.LevelUpHTML(user.FullName, level, points),
	})
	if err != nil {
		a.logger.Warn("level up: enqueue email", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
