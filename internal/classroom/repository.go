package classroom

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/audit"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/database"
)

const courseColumns = `id, title, description, COALESCE(cover_url,''), published, position, created_by, created_at, updated_at`

const lessonColumns = `l.id, l.module_id, l.title, l.content, l.content_text, COALESCE(l.video_url,''), l.position, l.created_at, l.updated_at`

// Repository handles classroom persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a classroom repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.CoverURL, &c.Published, &c.Position, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCourses returns courses by position; drafts only when includeDrafts.
func (r *Repository) ListCourses(ctx context.Context, includeDrafts bool) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses
		WHERE published OR $1 ORDER BY position, created_at`, includeDrafts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// GetCourse returns a course by id.
func (r *Repository) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

// Outline returns a course's modules with their lessons, flagged with userID's completions.
func (r *Repository) Outline(ctx context.Context, courseID, userID uuid.UUID) ([]models.CourseModule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, course_id, title, position, created_at, updated_at
		FROM course_modules WHERE course_id = $1 ORDER BY position, created_at`, courseID)
	if err != nil {
		return nil, err
	}
	modules := []models.CourseModule{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var m models.CourseModule
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Position, &m.CreatedAt, &m.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		m.Lessons = []models.Lesson{}
		index[m.ID] = len(modules)
		modules = append(modules, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT `+lessonColumns+`, lp.user_id IS NOT NULL
		FROM lessons l
		JOIN course_modules m ON m.id = l.module_id
		LEFT JOIN lesson_progress lp ON lp.lesson_id = l.id AND lp.user_id = $2
		WHERE m.course_id = $1 ORDER BY l.position, l.created_at`, courseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.Content, &l.ContentText, &l.VideoURL,
			&l.Position, &l.CreatedAt, &l.UpdatedAt, &l.Completed); err != nil {
			return nil, err
		}
		if i, ok := index[l.ModuleID]; ok {
			modules[i].Lessons = append(modules[i].Lessons, l)
		}
	}
	return modules, rows.Err()
}

// CreateCourse inserts a course at the end of the catalogue.
func (r *Repository) CreateCourse(ctx context.Context, c *models.Course) error {
	return r.pool.QueryRow(ctx, `INSERT INTO courses (title, description, cover_url, published, created_by, position)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, (SELECT COALESCE(MAX(position), -1) + 1 FROM courses))
		RETURNING id, position, created_at, updated_at`,
		c.Title, c.Description, c.CoverURL, c.Published, c.CreatedBy).
		Scan(&c.ID, &c.Position, &c.CreatedAt, &c.UpdatedAt)
}

// UpdateCourse writes a course's editable fields.
func (r *Repository) UpdateCourse(ctx context.Context, c *models.Course) error {
	err := r.pool.QueryRow(ctx, `UPDATE courses SET title = $2, description = $3, cover_url = NULLIF($4,''),
		published = $5, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Title, c.Description, c.CoverURL, c.Published).Scan(&c.UpdatedAt)
	if database.IsNoRows(err) {
		return ErrCourseNotFound
	}
	return err
}

// DeleteCourse removes a course and writes its audit entry in the same transaction.
func (r *Repository) DeleteCourse(ctx context.Context, id uuid.UUID, entry audit.Entry) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrCourseNotFound
		}
		return audit.Insert(ctx, tx, entry)
	})
}

// GetModule returns a module by id.
func (r *Repository) GetModule(ctx context.Context, id uuid.UUID) (*models.CourseModule, error) {
	var m models.CourseModule
	err := r.pool.QueryRow(ctx, `SELECT id, course_id, title, position, created_at, updated_at
		FROM course_modules WHERE id = $1`, id).
		Scan(&m.ID, &m.CourseID, &m.Title, &m.Position, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreateModule appends a module to its course.
func (r *Repository) CreateModule(ctx context.Context, m *models.CourseModule) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO course_modules (course_id, title, position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM course_modules WHERE course_id = $1))
		RETURNING id, position, created_at, updated_at`, m.CourseID, m.Title).
		Scan(&m.ID, &m.Position, &m.CreatedAt, &m.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrCourseNotFound
	}
	return err
}

// RenameModule sets a module's title.
func (r *Repository) RenameModule(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE course_modules SET title = $2, updated_at = NOW() WHERE id = $1`, id, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

// DeleteModule removes a module; its lessons cascade.
func (r *Repository) DeleteModule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM course_modules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

// ReorderModules rewrites every module position of a course in one transaction.
func (r *Repository) ReorderModules(ctx context.Context, courseID uuid.UUID, ids []uuid.UUID) error {
	return r.reorder(ctx, "course_modules", "course_id", courseID, ids, ErrCourseNotFound)
}

// ReorderLessons rewrites every lesson position of a module in one transaction.
func (r *Repository) ReorderLessons(ctx context.Context, moduleID uuid.UUID, ids []uuid.UUID) error {
	return r.reorder(ctx, "lessons", "module_id", moduleID, ids, ErrModuleNotFound)
}

// reorder locks the parent's children, checks ids names each exactly once, then
// assigns positions 0..n-1. Concurrent reorders serialise on the row locks.
func (r *Repository) reorder(ctx context.Context, table, parentCol string, parentID uuid.UUID, ids []uuid.UUID, notFound error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 FOR UPDATE`, table, parentCol), parentID)
		if err != nil {
			return err
		}
		current := map[uuid.UUID]bool{}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(current) == 0 {
			return notFound
		}
		if len(current) != len(ids) {
			return ErrInvalidOrder
		}
		for _, id := range ids {
			if !current[id] {
				return ErrInvalidOrder
			}
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s t SET position = v.ord - 1, updated_at = NOW()
			FROM unnest($1::uuid[]) WITH ORDINALITY AS v(id, ord) WHERE t.id = v.id`, table), ids)
		return err
	})
}

// GetLesson returns a lesson with the id of its course.
func (r *Repository) GetLesson(ctx context.Context, id uuid.UUID) (*LessonRef, error) {
	var ref LessonRef
	l := &ref.Lesson
	err := r.pool.QueryRow(ctx, `SELECT `+lessonColumns+`, m.course_id
		FROM lessons l JOIN course_modules m ON m.id = l.module_id WHERE l.id = $1`, id).
		Scan(&l.ID, &l.ModuleID, &l.Title, &l.Content, &l.ContentText, &l.VideoURL,
			&l.Position, &l.CreatedAt, &l.UpdatedAt, &ref.CourseID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	return &ref, nil
}

// CreateLesson appends a lesson to its module.
func (r *Repository) CreateLesson(ctx context.Context, l *models.Lesson) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO lessons (module_id, title, content, content_text, video_url, position)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), (SELECT COALESCE(MAX(position), -1) + 1 FROM lessons WHERE module_id = $1))
		RETURNING id, position, created_at, updated_at`,
		l.ModuleID, l.Title, nullJSON(l.Content), l.ContentText, l.VideoURL).
		Scan(&l.ID, &l.Position, &l.CreatedAt, &l.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrModuleNotFound
	}
	return err
}

// UpdateLesson writes a lesson's content fields.
func (r *Repository) UpdateLesson(ctx context.Context, l *models.Lesson) error {
	err := r.pool.QueryRow(ctx, `UPDATE lessons SET title = $2, content = $3, content_text = $4,
		video_url = NULLIF($5,''), updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		l.ID, l.Title, nullJSON(l.Content), l.ContentText, l.VideoURL).Scan(&l.UpdatedAt)
	if database.IsNoRows(err) {
		return ErrLessonNotFound
	}
	return err
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// DeleteLesson removes a lesson and its progress rows.
func (r *Repository) DeleteLesson(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// Enroll adds a member to a course.
func (r *Repository) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	e := &models.Enrollment{UserID: userID, CourseID: courseID}
	err := r.pool.QueryRow(ctx, `INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)
		RETURNING id, created_at`, userID, courseID).Scan(&e.ID, &e.CreatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return nil, ErrAlreadyEnrolled
	case database.IsForeignKeyViolation(err):
		return nil, ErrCourseNotFound
	case err != nil:
		return nil, err
	}
	return e, nil
}

// IsEnrolled reports whether a member is enrolled in a course.
func (r *Repository) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID).Scan(&ok)
	return ok, err
}

// CompleteLesson records a completion and, when it finishes the course, the course
// completion row. Both inserts are idempotent so each is reported new at most once.
func (r *Repository) CompleteLesson(ctx context.Context, userID uuid.UUID, ref LessonRef) (Completion, error) {
	var out Completion
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO lesson_progress (user_id, lesson_id) VALUES ($1, $2)
			ON CONFLICT (user_id, lesson_id) DO NOTHING`, userID, ref.Lesson.ID)
		if err != nil {
			return err
		}
		out.LessonNew = tag.RowsAffected() == 1
		out.Progress, err = progress(ctx, tx, userID, ref.CourseID)
		if err != nil {
			return err
		}
		if out.Progress.TotalLessons == 0 || out.Progress.CompletedLessons < out.Progress.TotalLessons {
			return nil
		}
		tag, err = tx.Exec(ctx, `INSERT INTO course_completions (user_id, course_id) VALUES ($1, $2)
			ON CONFLICT (user_id, course_id) DO NOTHING`, userID, ref.CourseID)
		if err != nil {
			return err
		}
		out.CourseNew = tag.RowsAffected() == 1
		return nil
	})
	return out, err
}

// UncompleteLesson deletes a completion; it reports whether one existed.
func (r *Repository) UncompleteLesson(ctx context.Context, userID, lessonID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`, userID, lessonID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Progress counts a member's completed lessons in a course.
func (r *Repository) Progress(ctx context.Context, userID, courseID uuid.UUID) (models.CourseProgress, error) {
	return progress(ctx, r.pool, userID, courseID)
}

func progress(ctx context.Context, q database.Querier, userID, courseID uuid.UUID) (models.CourseProgress, error) {
	p := models.CourseProgress{CourseID: courseID}
	err := q.QueryRow(ctx, `SELECT COUNT(l.id), COUNT(lp.lesson_id)
		FROM lessons l
		JOIN course_modules m ON m.id = l.module_id
		LEFT JOIN lesson_progress lp ON lp.lesson_id = l.id AND lp.user_id = $1
		WHERE m.course_id = $2`, userID, courseID).Scan(&p.TotalLessons, &p.CompletedLessons)
	if err != nil {
		return p, err
	}
	p.Percent = Percent(p.CompletedLessons, p.TotalLessons)
	return p, nil
}
