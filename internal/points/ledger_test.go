package points

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUser struct {
	points, level int
}

type fakeEvent struct {
	userID uuid.UUID
	amount int
	action Action
}

// memStore snapshots its state per transaction and restores it on error.
type memStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*fakeUser
	events []fakeEvent

	failSetLevel bool
	failAdd      bool
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*fakeUser{}}
}

func (s *memStore) addUser(points, level int) uuid.UUID {
	id := uuid.New()
	s.users[id] = &fakeUser{points: points, level: level}
	return id
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[uuid.UUID]fakeUser, len(s.users))
	for id, u := range s.users {
		users[id] = *u
	}
	nEvents := len(s.events)
	if err := fn(memTx{s}); err != nil {
		for id, u := range users {
			*s.users[id] = u
		}
		s.events = s.events[:nEvents]
		return err
	}
	return nil
}

type memTx struct{ s *memStore }

func (t memTx) InsertPointsEvent(_ context.Context, userID uuid.UUID, amount int, action Action) error {
	t.s.events = append(t.s.events, fakeEvent{userID, amount, action})
	return nil
}

func (t memTx) AddPoints(_ context.Context, userID uuid.UUID, amount int) (int, int, error) {
	if t.s.failAdd {
		return 0, 0, errors.New("connection reset")
	}
	u, ok := t.s.users[userID]
	if !ok {
		return 0, 0, ErrUserNotFound
	}
	u.points += amount
	return u.points, u.level, nil
}

func (t memTx) SetLevel(_ context.Context, userID uuid.UUID, level int) error {
	if t.s.failSetLevel {
		return errors.New("deadlock detected")
	}
	t.s.users[userID].level = level
	return nil
}

type recordingNotifier struct {
	calls []int
}

func (n *recordingNotifier) LevelUp(_ context.Context, _ uuid.UUID, level, _ int) {
	n.calls = append(n.calls, level)
}

func TestLedger_Award_LevelUpScenario(t *testing.T) {
	store := newMemStore()
	uid := store.addUser(45, 1)
	notifier := &recordingNotifier{}
	l := NewLedger(store, notifier, nil, nil)

	res, err := l.Award(context.Background(), uid, ActionLessonCompleted)
	require.NoError(t, err)

	assert.Equal(t, Result{LevelUp: true, NewLevel: 2, Points: 55}, res)
	assert.Equal(t, 55, store.users[uid].points)
	assert.Equal(t, 2, store.users[uid].level)
	assert.Equal(t, []int{2}, notifier.calls)
	require.Len(t, store.events, 1)
	assert.Equal(t, fakeEvent{uid, 10, ActionLessonCompleted}, store.events[0])
}

func TestLedger_Award_NotIdempotent(t *testing.T) {
	store := newMemStore()
	uid := store.addUser(0, 1)
	l := NewLedger(store, nil, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := l.Award(context.Background(), uid, ActionPostCreated)
		require.NoError(t, err)
	}
	assert.Len(t, store.events, 2)
	assert.Equal(t, 10, store.users[uid].points)
}

func TestLedger_Award_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		action    Action
		wantLevel int
		wantUp    bool
	}{
		{"reaches threshold exactly", 49, ActionLikeReceived, 2, true},
		{"lands one below threshold", 47, ActionCommentCreated, 1, false},
		{"already at level", 60, ActionPostCreated, 2, false},
		{"skips levels", 140, ActionCourseCompleted, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			uid := store.addUser(tt.start, CalculateLevel(tt.start))
			res, err := NewLedger(store, nil, nil, nil).Award(context.Background(), uid, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, res.LevelUp)
			assert.Equal(t, tt.wantLevel, res.NewLevel)
			assert.Equal(t, tt.wantLevel, store.users[uid].level)
		})
	}
}

func TestLedger_Award_UnknownActionWritesNothing(t *testing.T) {
	store := newMemStore()
	uid := store.addUser(10, 1)

	_, err := NewLedger(store, nil, nil, nil).Award(context.Background(), uid, Action("LIKE_REMOVED"))
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Empty(t, store.events)
	assert.Equal(t, 10, store.users[uid].points)
}

func TestLedger_Award_RollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	uid := store.addUser(45, 1)
	store.failSetLevel = true
	notifier := &recordingNotifier{}

	_, err := NewLedger(store, notifier, nil, nil).Award(context.Background(), uid, ActionLessonCompleted)
	require.Error(t, err)

	assert.Empty(t, store.events)
	assert.Equal(t, 45, store.users[uid].points)
	assert.Equal(t, 1, store.users[uid].level)
	assert.Empty(t, notifier.calls)
}

func TestLedger_Award_UnknownUser(t *testing.T) {
	store := newMemStore()
	_, err := NewLedger(store, nil, nil, nil).Award(context.Background(), uuid.New(), ActionPostCreated)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, store.events)
}

func TestLedger_Award_Concurrent(t *testing.T) {
	store := newMemStore()
	uid := store.addUser(0, 1)
	l := NewLedger(store, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Award(context.Background(), uid, ActionPostCreated)
		}()
	}
	wg.Wait()
	assert.Equal(t, 250, store.users[uid].points)
	assert.Equal(t, CalculateLevel(250), store.users[uid].level)
	assert.Len(t, store.events, 50)
}

func TestLedger_AwardQuietly_SwallowsError(t *testing.T) {
	store := newMemStore()
	store.failAdd = true
	uid := store.addUser(0, 1)
	assert.NotPanics(t, func() {
		NewLedger(store, nil, nil, nil).AwardQuietly(context.Background(), uid, ActionPostCreated)
	})
	assert.Empty(t, store.events)
}
