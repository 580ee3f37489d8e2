package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/pkg/metrics"
)

var (
	ErrUnknownAction = errors.New("unknown points action")
	ErrUserNotFound  = errors.New("user not found")
)

// Tx is the set of writes one grant performs; every call shares one transaction.
type Tx interface {
	InsertPointsEvent(ctx context.Context, userID uuid.UUID, amount int, action Action) error
	// AddPoints increments the user's total and returns the new total and the stored level.
	AddPoints(ctx context.Context, userID uuid.UUID, amount int) (points, level int, err error)
	SetLevel(ctx context.Context, userID uuid.UUID, level int) error
}

// Store runs fn in a transaction, committing only when fn returns nil.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// LevelUpNotifier is told about level increases after the grant commits.
type LevelUpNotifier interface {
	LevelUp(ctx context.Context, userID uuid.UUID, level, points int)
}

// Result describes the state after a grant.
type Result struct {
	LevelUp  bool `json:"level_up"`
	NewLevel int  `json:"new_level"`
	Points   int  `json:"points"`
}

// Ledger awards points and keeps levels in sync.
type Ledger struct {
	store    Store
	notifier LevelUpNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewLedger creates a ledger. notifier and m may be nil.
func NewLedger(store Store, notifier LevelUpNotifier, m *metrics.Metrics, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, notifier: notifier, metrics: m, logger: logger}
}

// Award grants the fixed amount for action to userID in a single transaction.
// Each call is a separate grant; nothing is written for an unknown action.
func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, action Action) (Result, error) {
	amount, ok := AmountFor(action)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	var res Result
	err := l.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertPointsEvent(ctx, userID, amount, action); err != nil {
			return fmt.Errorf("insert points event: %w", err)
		}
		total, stored, err := tx.AddPoints(ctx, userID, amount)
		if err != nil {
			return fmt.Errorf("add points: %w", err)
		}
		res = Result{NewLevel: stored, Points: total}
		if level := CalculateLevel(total); level > stored {
			if err := tx.SetLevel(ctx, userID, level); err != nil {
				return fmt.Errorf("set level: %w", err)
			}
			res.LevelUp = true
			res.NewLevel = level
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	l.metrics.PointsAwardedInc(string(action), amount)
	if res.LevelUp {
		l.metrics.LevelUpInc()
		l.logger.Info("level up",
			zap.String("user_id", userID.String()),
			zap.Int("level", res.NewLevel),
			zap.Int("points", res.Points),
		)
		if l.notifier != nil {
			l.notifier.LevelUp(ctx, userID, res.NewLevel, res.Points)
		}
	}
	return res, nil
}

// AwardQuietly grants points as a side effect of another action. The triggering
// action has already succeeded, so a failed grant is logged rather than returned.
func (l *Ledger) AwardQuietly(ctx context.Context, userID uuid.UUID, action Action) {
	if _, err := l.Award(ctx, userID, action); err != nil {
		l.logger.Error("award points failed",
			zap.String("user_id", userID.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
