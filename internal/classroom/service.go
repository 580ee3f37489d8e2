// Package classroom serves courses, their modules and lessons, enrollments and progress.
package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/internal/richtext"
	"github.com/aura-community/backend/pkg/metrics"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrModuleNotFound  = errors.New("module not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrNotEnrolled     = errors.New("not enrolled in this course")
	ErrInvalidOrder    = errors.New("order must list every item exactly once")
	ErrNotPublished    = errors.New("course is not published")
	ErrNotCompleted    = errors.New("lesson is not completed")
)

// CourseInput is the body for creating or replacing a course.
type CourseInput struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	Published   bool   `json:"published"`
}

// Validate checks course fields.
func (in CourseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 5000)),
		validation.Field(&in.CoverURL, validation.Length(0, 2000)),
	)
}

// ModuleInput is the body for creating or renaming a module.
type ModuleInput struct {
	Title string `json:"title" binding:"required,max=200"`
}

// LessonInput is the body for creating or replacing a lesson.
type LessonInput struct {
	Title    string          `json:"title" binding:"required,max=200"`
	Content  json.RawMessage `json:"content"`
	VideoURL string          `json:"video_url"`
}

// Validate checks lesson fields.
func (in LessonInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.VideoURL, validation.Length(0, 2000)),
	)
}

// OrderInput lists child ids in their new order.
type OrderInput struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

// CourseDetail is a course with its outline and the viewer's progress.
type CourseDetail struct {
	models.Course
	Modules  []models.CourseModule `json:"modules"`
	Enrolled bool                  `json:"enrolled"`
	Progress models.CourseProgress `json:"progress"`
}

// LessonRef locates a lesson within its course.
type LessonRef struct {
	Lesson   models.Lesson
	CourseID uuid.UUID
}

// Completion is the outcome of marking a lesson complete.
type Completion struct {
	LessonNew bool
	CourseNew bool
	Progress  models.CourseProgress
}

// Store persists the classroom.
type Store interface {
	ListCourses(ctx context.Context, includeDrafts bool) ([]models.Course, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	Outline(ctx context.Context, courseID, userID uuid.UUID) ([]models.CourseModule, error)
	CreateCourse(ctx context.Context, c *models.Course) error
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id uuid.UUID, entry audit.Entry) error

	GetModule(ctx context.Context, id uuid.UUID) (*models.CourseModule, error)
	CreateModule(ctx context.Context, m *models.CourseModule) error
	RenameModule(ctx context.Context, id uuid.UUID, title string) error
	DeleteModule(ctx context.Context, id uuid.UUID) error
	ReorderModules(ctx context.Context, courseID uuid.UUID, ids []uuid.UUID) error

	GetLesson(ctx context.Context, id uuid.UUID) (*LessonRef, error)
	CreateLesson(ctx context.Context, l *models.Lesson) error
	UpdateLesson(ctx context.Context, l *models.Lesson) error
	DeleteLesson(ctx context.Context, id uuid.UUID) error
	ReorderLessons(ctx context.Context, moduleID uuid.UUID, ids []uuid.UUID) error

	Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	CompleteLesson(ctx context.Context, userID uuid.UUID, ref LessonRef) (Completion, error)
	UncompleteLesson(ctx context.Context, userID, lessonID uuid.UUID) (bool, error)
	Progress(ctx context.Context, userID, courseID uuid.UUID) (models.CourseProgress, error)
}

// Awarder grants points without failing the caller.
type Awarder interface {
	AwardQuietly(ctx context.Context, userID uuid.UUID, action points.Action)
}

// Service implements classroom operations.
type Service struct {
	store   Store
	points  Awarder
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a classroom service. points and m may be nil.
func NewService(store Store, awarder Awarder, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, points: awarder, metrics: m, logger: logger}
}

func canAuthor(actor permissions.Actor) bool {
	return permissions.CanEditSettings(actor.Role)
}

// ListCourses returns published courses, plus drafts for admins.
func (s *Service) ListCourses(ctx context.Context, actor permissions.Actor) ([]models.Course, error) {
	return s.store.ListCourses(ctx, canAuthor(actor))
}

// visibleCourse hides drafts from non-admins.
func (s *Service) visibleCourse(ctx context.Context, actor permissions.Actor, id uuid.UUID) (*models.Course, error) {
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Published && !canAuthor(actor) {
		return nil, ErrCourseNotFound
	}
	return c, nil
}

// GetCourse returns a course outline with the actor's enrollment and progress.
func (s *Service) GetCourse(ctx context.Context, actor permissions.Actor, id uuid.UUID) (*CourseDetail, error) {
	c, err := s.visibleCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	modules, err := s.store.Outline(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.store.IsEnrolled(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}
	d := &CourseDetail{Course: *c, Modules: modules, Enrolled: enrolled}
	d.Progress = progressOf(id, modules)
	return d, nil
}

func progressOf(courseID uuid.UUID, modules []models.CourseModule) models.CourseProgress {
	p := models.CourseProgress{CourseID: courseID}
	for _, m := range modules {
		for _, l := range m.Lessons {
			p.TotalLessons++
			if l.Completed {
				p.CompletedLessons++
			}
		}
	}
	p.Percent = Percent(p.CompletedLessons, p.TotalLessons)
	return p
}

// Percent returns completed/total as a whole percentage rounded down; 0 for an empty course.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}

// CreateCourse adds a course (admin only).
func (s *Service) CreateCourse(ctx context.Context, actor permissions.Actor, in CourseInput) (*models.Course, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c := &models.Course{
		Title:       in.Title,
		Description: in.Description,
		CoverURL:    in.CoverURL,
		Published:   in.Published,
		CreatedBy:   actor.ID,
	}
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("course created", zap.String("course_id", c.ID.String()), zap.String("by", actor.ID.String()))
	return c, nil
}

// UpdateCourse replaces a course's fields (admin only).
func (s *Service) UpdateCourse(ctx context.Context, actor permissions.Actor, id uuid.UUID, in CourseInput) (*models.Course, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c.Title, c.Description, c.CoverURL, c.Published = in.Title, in.Description, in.CoverURL, in.Published
	if err := s.store.UpdateCourse(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCourse removes a course and everything under it, recording an audit entry.
func (s *Service) DeleteCourse(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	entry := audit.Entry{
		ActorID:    actor.ID,
		Action:     models.AuditCourseDeleted,
		TargetID:   audit.Ref(id),
		TargetType: audit.TargetCourse,
		Details:    map[string]string{"title": c.Title},
	}
	if err := s.store.DeleteCourse(ctx, id, entry); err != nil {
		return err
	}
	s.metrics.ModerationInc(string(models.AuditCourseDeleted))
	s.logger.Info("course deleted", zap.String("course_id", id.String()), zap.String("by", actor.ID.String()))
	return nil
}

// CreateModule appends a module to a course (admin only).
func (s *Service) CreateModule(ctx context.Context, actor permissions.Actor, courseID uuid.UUID, in ModuleInput) (*models.CourseModule, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if err := validation.Validate(title, validation.Required, validation.Length(1, 200)); err != nil {
		return nil, validation.Errors{"title": err}
	}
	m := &models.CourseModule{CourseID: courseID, Title: title}
	if err := s.store.CreateModule(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RenameModule changes a module's title (admin only).
func (s *Service) RenameModule(ctx context.Context, actor permissions.Actor, id uuid.UUID, in ModuleInput) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	title := strings.TrimSpace(in.Title)
	if err := validation.Validate(title, validation.Required, validation.Length(1, 200)); err != nil {
		return validation.Errors{"title": err}
	}
	return s.store.RenameModule(ctx, id, title)
}

// DeleteModule removes a module and its lessons (admin only).
func (s *Service) DeleteModule(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	return s.store.DeleteModule(ctx, id)
}

// ReorderModules sets module positions to the order of ids (admin only).
func (s *Service) ReorderModules(ctx context.Context, actor permissions.Actor, courseID uuid.UUID, ids []uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	if !distinct(ids) {
		return ErrInvalidOrder
	}
	return s.store.ReorderModules(ctx, courseID, ids)
}

func distinct(ids []uuid.UUID) bool {
	if len(ids) == 0 {
		return false
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// CreateLesson appends a lesson to a module (admin only).
func (s *Service) CreateLesson(ctx context.Context, actor permissions.Actor, moduleID uuid.UUID, in LessonInput) (*models.Lesson, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	if _, err := s.store.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l := &models.Lesson{ModuleID: moduleID}
	in.apply(l)
	if err := s.store.CreateLesson(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (in LessonInput) apply(l *models.Lesson) {
	l.Title = in.Title
	l.Content = in.Content
	l.ContentText = richtext.PlainText(in.Content)
	l.VideoURL = in.VideoURL
}

// UpdateLesson replaces a lesson's content (admin only).
func (s *Service) UpdateLesson(ctx context.Context, actor permissions.Actor, id uuid.UUID, in LessonInput) (*models.Lesson, error) {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return nil, err
	}
	ref, err := s.store.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l := ref.Lesson
	in.apply(&l)
	if err := s.store.UpdateLesson(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLesson removes a lesson (admin only).
func (s *Service) DeleteLesson(ctx context.Context, actor permissions.Actor, id uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	return s.store.DeleteLesson(ctx, id)
}

// ReorderLessons sets lesson positions within a module to the order of ids (admin only).
func (s *Service) ReorderLessons(ctx context.Context, actor permissions.Actor, moduleID uuid.UUID, ids []uuid.UUID) error {
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		return err
	}
	if !distinct(ids) {
		return ErrInvalidOrder
	}
	return s.store.ReorderLessons(ctx, moduleID, ids)
}

// GetLesson returns a lesson the actor may read: enrolled members and admins.
func (s *Service) GetLesson(ctx context.Context, actor permissions.Actor, id uuid.UUID) (*models.Lesson, error) {
	ref, err := s.lessonFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &ref.Lesson, nil
}

func (s *Service) lessonFor(ctx context.Context, actor permissions.Actor, id uuid.UUID) (*LessonRef, error) {
	ref, err := s.store.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if canAuthor(actor) {
		return ref, nil
	}
	if _, err := s.visibleCourse(ctx, actor, ref.CourseID); err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	enrolled, err := s.store.IsEnrolled(ctx, actor.ID, ref.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}
	return ref, nil
}

// Enroll adds the actor to a published course.
func (s *Service) Enroll(ctx context.Context, actor permissions.Actor, courseID uuid.UUID) (*models.Enrollment, error) {
	c, err := s.visibleCourse(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if !c.Published {
		return nil, ErrNotPublished
	}
	return s.store.Enroll(ctx, actor.ID, courseID)
}

// CompleteLesson records the lesson as done. The first completion of a lesson awards
// LESSON_COMPLETED; finishing the last lesson of a course awards COURSE_COMPLETED once.
func (s *Service) CompleteLesson(ctx context.Context, actor permissions.Actor, lessonID uuid.UUID) (models.CourseProgress, error) {
	ref, err := s.lessonFor(ctx, actor, lessonID)
	if err != nil {
		return models.CourseProgress{}, err
	}
	done, err := s.store.CompleteLesson(ctx, actor.ID, *ref)
	if err != nil {
		return models.CourseProgress{}, err
	}
	if s.points != nil {
		if done.LessonNew {
			s.points.AwardQuietly(ctx, actor.ID, points.ActionLessonCompleted)
		}
		if done.CourseNew {
			s.points.AwardQuietly(ctx, actor.ID, points.ActionCourseCompleted)
		}
	}
	if done.CourseNew {
		s.logger.Info("course completed", zap.String("course_id", ref.CourseID.String()), zap.String("user_id", actor.ID.String()))
	}
	return done.Progress, nil
}

// UncompleteLesson clears a lesson's completion. Points already awarded are kept.
func (s *Service) UncompleteLesson(ctx context.Context, actor permissions.Actor, lessonID uuid.UUID) (models.CourseProgress, error) {
	ref, err := s.lessonFor(ctx, actor, lessonID)
	if err != nil {
		return models.CourseProgress{}, err
	}
	removed, err := s.store.UncompleteLesson(ctx, actor.ID, lessonID)
	if err != nil {
		return models.CourseProgress{}, err
	}
	if !removed {
		return models.CourseProgress{}, ErrNotCompleted
	}
	return s.store.Progress(ctx, actor.ID, ref.CourseID)
}

// Progress returns the actor's completion of a course.
func (s *Service) Progress(ctx context.Context, actor permissions.Actor, courseID uuid.UUID) (models.CourseProgress, error) {
	if _, err := s.visibleCourse(ctx, actor, courseID); err != nil {
		return models.CourseProgress{}, err
	}
	return s.store.Progress(ctx, actor.ID, courseID)
}
