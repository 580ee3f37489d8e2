package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
)

type enrollKey struct{ user, course uuid.UUID }

type memStore struct {
	courses     map[uuid.UUID]*models.Course
	modules     map[uuid.UUID]*models.CourseModule
	lessons     map[uuid.UUID]*models.Lesson
	enrolled    map[enrollKey]bool
	done        map[enrollKey]bool // user, lesson
	completions map[enrollKey]bool // user, course
	audits      []audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		courses:     map[uuid.UUID]*models.Course{},
		modules:     map[uuid.UUID]*models.CourseModule{},
		lessons:     map[uuid.UUID]*models.Lesson{},
		enrolled:    map[enrollKey]bool{},
		done:        map[enrollKey]bool{},
		completions: map[enrollKey]bool{},
	}
}

func (m *memStore) ListCourses(_ context.Context, includeDrafts bool) ([]models.Course, error) {
	list := []models.Course{}
	for _, c := range m.courses {
		if c.Published || includeDrafts {
			list = append(list, *c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	return list, nil
}

func (m *memStore) GetCourse(_ context.Context, id uuid.UUID) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) modulesOf(courseID uuid.UUID) []models.CourseModule {
	var out []models.CourseModule
	for _, mod := range m.modules {
		if mod.CourseID == courseID {
			out = append(out, *mod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memStore) lessonsOf(moduleID uuid.UUID) []models.Lesson {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.ModuleID == moduleID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memStore) Outline(_ context.Context, courseID, userID uuid.UUID) ([]models.CourseModule, error) {
	mods := m.modulesOf(courseID)
	for i := range mods {
		mods[i].Lessons = m.lessonsOf(mods[i].ID)
		for j := range mods[i].Lessons {
			mods[i].Lessons[j].Completed = m.done[enrollKey{userID, mods[i].Lessons[j].ID}]
		}
	}
	return mods, nil
}

func (m *memStore) CreateCourse(_ context.Context, c *models.Course) error {
	c.ID = uuid.New()
	c.Position = len(m.courses)
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memStore) UpdateCourse(_ context.Context, c *models.Course) error {
	if _, ok := m.courses[c.ID]; !ok {
		return ErrCourseNotFound
	}
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memStore) DeleteCourse(_ context.Context, id uuid.UUID, entry audit.Entry) error {
	if _, ok := m.courses[id]; !ok {
		return ErrCourseNotFound
	}
	delete(m.courses, id)
	for mid, mod := range m.modules {
		if mod.CourseID == id {
			delete(m.modules, mid)
		}
	}
	m.audits = append(m.audits, entry)
	return nil
}

func (m *memStore) GetModule(_ context.Context, id uuid.UUID) (*models.CourseModule, error) {
	mod, ok := m.modules[id]
	if !ok {
		return nil, ErrModuleNotFound
	}
	cp := *mod
	return &cp, nil
}

func (m *memStore) CreateModule(_ context.Context, mod *models.CourseModule) error {
	mod.ID = uuid.New()
	mod.Position = len(m.modulesOf(mod.CourseID))
	cp := *mod
	m.modules[mod.ID] = &cp
	return nil
}

func (m *memStore) RenameModule(_ context.Context, id uuid.UUID, title string) error {
	mod, ok := m.modules[id]
	if !ok {
		return ErrModuleNotFound
	}
	mod.Title = title
	return nil
}

func (m *memStore) DeleteModule(_ context.Context, id uuid.UUID) error {
	if _, ok := m.modules[id]; !ok {
		return ErrModuleNotFound
	}
	delete(m.modules, id)
	return nil
}

func (m *memStore) ReorderModules(_ context.Context, courseID uuid.UUID, ids []uuid.UUID) error {
	if len(m.modulesOf(courseID)) != len(ids) {
		return ErrInvalidOrder
	}
	for i, id := range ids {
		mod, ok := m.modules[id]
		if !ok || mod.CourseID != courseID {
			return ErrInvalidOrder
		}
		mod.Position = i
	}
	return nil
}

func (m *memStore) GetLesson(_ context.Context, id uuid.UUID) (*LessonRef, error) {
	l, ok := m.lessons[id]
	if !ok {
		return nil, ErrLessonNotFound
	}
	return &LessonRef{Lesson: *l, CourseID: m.modules[l.ModuleID].CourseID}, nil
}

func (m *memStore) CreateLesson(_ context.Context, l *models.Lesson) error {
	l.ID = uuid.New()
	l.Position = len(m.lessonsOf(l.ModuleID))
	cp := *l
	m.lessons[l.ID] = &cp
	return nil
}

func (m *memStore) UpdateLesson(_ context.Context, l *models.Lesson) error {
	cp := *l
	m.lessons[l.ID] = &cp
	return nil
}

func (m *memStore) DeleteLesson(_ context.Context, id uuid.UUID) error {
	delete(m.lessons, id)
	return nil
}

func (m *memStore) ReorderLessons(_ context.Context, moduleID uuid.UUID, ids []uuid.UUID) error {
	if len(m.lessonsOf(moduleID)) != len(ids) {
		return ErrInvalidOrder
	}
	for i, id := range ids {
		m.lessons[id].Position = i
	}
	return nil
}

func (m *memStore) Enroll(_ context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	k := enrollKey{userID, courseID}
	if m.enrolled[k] {
		return nil, ErrAlreadyEnrolled
	}
	m.enrolled[k] = true
	return &models.Enrollment{ID: uuid.New(), UserID: userID, CourseID: courseID}, nil
}

func (m *memStore) IsEnrolled(_ context.Context, userID, courseID uuid.UUID) (bool, error) {
	return m.enrolled[enrollKey{userID, courseID}], nil
}

func (m *memStore) CompleteLesson(ctx context.Context, userID uuid.UUID, ref LessonRef) (Completion, error) {
	var out Completion
	k := enrollKey{userID, ref.Lesson.ID}
	out.LessonNew = !m.done[k]
	m.done[k] = true
	out.Progress, _ = m.Progress(ctx, userID, ref.CourseID)
	if out.Progress.TotalLessons > 0 && out.Progress.CompletedLessons == out.Progress.TotalLessons {
		ck := enrollKey{userID, ref.CourseID}
		out.CourseNew = !m.completions[ck]
		m.completions[ck] = true
	}
	return out, nil
}

func (m *memStore) UncompleteLesson(_ context.Context, userID, lessonID uuid.UUID) (bool, error) {
	k := enrollKey{userID, lessonID}
	had := m.done[k]
	delete(m.done, k)
	return had, nil
}

func (m *memStore) Progress(ctx context.Context, userID, courseID uuid.UUID) (models.CourseProgress, error) {
	mods, _ := m.Outline(ctx, courseID, userID)
	return progressOf(courseID, mods), nil
}

type fakeAwarder struct{ got []points.Action }

func (f *fakeAwarder) AwardQuietly(_ context.Context, _ uuid.UUID, action points.Action) {
	f.got = append(f.got, action)
}

var (
	admin  = permissions.Actor{ID: uuid.New(), Role: permissions.RoleAdmin}
	mod    = permissions.Actor{ID: uuid.New(), Role: permissions.RoleModerator}
	member = permissions.Actor{ID: uuid.New(), Role: permissions.RoleMember}
)

type fixture struct {
	store  *memStore
	awards *fakeAwarder
	svc    *Service
}

func newFixture() fixture {
	store := newMemStore()
	awards := &fakeAwarder{}
	return fixture{store: store, awards: awards, svc: NewService(store, awards, nil, zap.NewNop())}
}

// seed builds a published course with one module holding n lessons.
func (f fixture) seed(t *testing.T, n int) (*models.Course, *models.CourseModule, []*models.Lesson) {
	t.Helper()
	ctx := context.Background()
	c, err := f.svc.CreateCourse(ctx, admin, CourseInput{Title: "Go basics", Published: true})
	require.NoError(t, err)
	m, err := f.svc.CreateModule(ctx, admin, c.ID, ModuleInput{Title: "Intro"})
	require.NoError(t, err)
	var lessons []*models.Lesson
	for i := 0; i < n; i++ {
		l, err := f.svc.CreateLesson(ctx, admin, m.ID, LessonInput{
			Title:   "Lesson",
			Content: json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"hello"}]}]}`),
		})
		require.NoError(t, err)
		lessons = append(lessons, l)
	}
	return c, m, lessons
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 0, Percent(0, 3))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 66, Percent(2, 3))
	assert.Equal(t, 100, Percent(3, 3))
}

func TestAuthoring_RequiresAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.CreateCourse(ctx, mod, CourseInput{Title: "x"})
	assert.ErrorIs(t, err, permissions.ErrNotAuthorized)

	c, m, lessons := f.seed(t, 1)
	assert.ErrorIs(t, f.svc.DeleteCourse(ctx, member, c.ID), permissions.ErrNotAuthorized)
	_, err = f.svc.CreateModule(ctx, member, c.ID, ModuleInput{Title: "m"})
	assert.ErrorIs(t, err, permissions.ErrNotAuthorized)
	_, err = f.svc.UpdateLesson(ctx, mod, lessons[0].ID, LessonInput{Title: "t"})
	assert.ErrorIs(t, err, permissions.ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.ReorderLessons(ctx, member, m.ID, []uuid.UUID{lessons[0].ID}), permissions.ErrNotAuthorized)
}

func TestCreateLesson_DerivesPlainText(t *testing.T) {
	f := newFixture()
	_, _, lessons := f.seed(t, 1)
	assert.Equal(t, "hello", f.store.lessons[lessons[0].ID].ContentText)
}

func TestCreateCourse_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateCourse(context.Background(), admin, CourseInput{Title: "   "})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "title")
}

func TestDrafts_HiddenFromMembers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.svc.CreateCourse(ctx, admin, CourseInput{Title: "Draft"})
	require.NoError(t, err)

	list, err := f.svc.ListCourses(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = f.svc.ListCourses(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.GetCourse(ctx, member, draft.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = f.svc.Enroll(ctx, member, draft.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = f.svc.Enroll(ctx, admin, draft.ID)
	assert.ErrorIs(t, err, ErrNotPublished)
}

func TestEnroll_Unique(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, _, _ := f.seed(t, 1)
	_, err := f.svc.Enroll(ctx, member, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, member, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestCompleteLesson_AwardsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, _, lessons := f.seed(t, 2)

	_, err := f.svc.CompleteLesson(ctx, member, lessons[0].ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = f.svc.Enroll(ctx, member, c.ID)
	require.NoError(t, err)

	p, err := f.svc.CompleteLesson(ctx, member, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Percent)
	assert.Equal(t, []points.Action{points.ActionLessonCompleted}, f.awards.got)

	_, err = f.svc.CompleteLesson(ctx, member, lessons[0].ID)
	require.NoError(t, err)
	assert.Len(t, f.awards.got, 1, "repeat completion awards nothing")

	p, err = f.svc.CompleteLesson(ctx, member, lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, []points.Action{points.ActionLessonCompleted, points.ActionLessonCompleted, points.ActionCourseCompleted}, f.awards.got)

	p, err = f.svc.UncompleteLesson(ctx, member, lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Percent)
	_, err = f.svc.UncompleteLesson(ctx, member, lessons[1].ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = f.svc.CompleteLesson(ctx, member, lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []points.Action{points.ActionLessonCompleted, points.ActionLessonCompleted, points.ActionCourseCompleted},
		f.awards.got, "course completion is awarded only once")

	d, err := f.svc.GetCourse(ctx, member, c.ID)
	require.NoError(t, err)
	assert.True(t, d.Enrolled)
	assert.Equal(t, 2, d.Progress.CompletedLessons)
}

func TestReorder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, m, lessons := f.seed(t, 3)
	ids := []uuid.UUID{lessons[2].ID, lessons[0].ID, lessons[1].ID}

	assert.ErrorIs(t, f.svc.ReorderLessons(ctx, admin, m.ID, nil), ErrInvalidOrder)
	assert.ErrorIs(t, f.svc.ReorderLessons(ctx, admin, m.ID, []uuid.UUID{ids[0], ids[0], ids[1]}), ErrInvalidOrder)
	assert.ErrorIs(t, f.svc.ReorderLessons(ctx, admin, m.ID, ids[:2]), ErrInvalidOrder)

	require.NoError(t, f.svc.ReorderLessons(ctx, admin, m.ID, ids))
	got := f.store.lessonsOf(m.ID)
	for i := range ids {
		assert.Equal(t, ids[i], got[i].ID)
	}
}

func TestDeleteCourse_Audited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, _, _ := f.seed(t, 1)
	require.NoError(t, f.svc.DeleteCourse(ctx, admin, c.ID))
	require.Len(t, f.store.audits, 1)
	e := f.store.audits[0]
	assert.Equal(t, models.AuditCourseDeleted, e.Action)
	assert.Equal(t, admin.ID, e.ActorID)
	assert.Equal(t, audit.TargetCourse, e.TargetType)
	assert.ErrorIs(t, f.svc.DeleteCourse(ctx, admin, c.ID), ErrCourseNotFound)
}

func TestGetLesson_Access(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c, _, lessons := f.seed(t, 1)

	_, err := f.svc.GetLesson(ctx, member, lessons[0].ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	_, err = f.svc.GetLesson(ctx, admin, lessons[0].ID)
	assert.NoError(t, err)

	_, err = f.svc.Enroll(ctx, member, c.ID)
	require.NoError(t, err)
	l, err := f.svc.GetLesson(ctx, member, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Lesson", l.Title)

	_, err = f.svc.GetLesson(ctx, member, uuid.New())
	assert.ErrorIs(t, err, ErrLessonNotFound)
}
