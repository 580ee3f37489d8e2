package classroom

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

// Handler handles classroom HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a classroom handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

var errorMappings = []response.Mapping{
	{Err: permissions.ErrNotAuthorized, Status: http.StatusForbidden},
	{Err: ErrCourseNotFound, Status: http.StatusNotFound},
	{Err: ErrModuleNotFound, Status: http.StatusNotFound},
	{Err: ErrLessonNotFound, Status: http.StatusNotFound},
	{Err: ErrAlreadyEnrolled, Status: http.StatusConflict},
	{Err: ErrNotEnrolled, Status: http.StatusForbidden},
	{Err: ErrNotPublished, Status: http.StatusBadRequest},
	{Err: ErrInvalidOrder, Status: http.StatusBadRequest},
	{Err: ErrNotCompleted, Status: http.StatusNotFound},
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if !response.Known(err, errorMappings...) {
		h.logger.Error(msg, zap.Error(err))
	}
	response.Error(c, err, msg, errorMappings...)
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// ListCourses handles GET /courses.
func (h *Handler) ListCourses(c *gin.Context) {
	list, err := h.svc.ListCourses(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// GetCourse handles GET /courses/:id.
func (h *Handler) GetCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := h.svc.GetCourse(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to get course")
		return
	}
	response.OK(c, d)
}

// CreateCourse handles POST /admin/courses.
func (h *Handler) CreateCourse(c *gin.Context) {
	var req CourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	course, err := h.svc.CreateCourse(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		h.fail(c, err, "failed to create course")
		return
	}
	response.Created(c, course)
}

// UpdateCourse handles PUT /admin/courses/:id.
func (h *Handler) UpdateCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	course, err := h.svc.UpdateCourse(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update course")
		return
	}
	response.OK(c, course)
}

// DeleteCourse handles DELETE /admin/courses/:id.
func (h *Handler) DeleteCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteCourse(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to delete course")
		return
	}
	response.NoContent(c)
}

// CreateModule handles POST /admin/courses/:id/modules.
func (h *Handler) CreateModule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ModuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	m, err := h.svc.CreateModule(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to create module")
		return
	}
	response.Created(c, m)
}

// ReorderModules handles PUT /admin/courses/:id/modules/order.
func (h *Handler) ReorderModules(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if err := h.svc.ReorderModules(c.Request.Context(), middleware.CurrentActor(c), id, req.IDs); err != nil {
		h.fail(c, err, "failed to reorder modules")
		return
	}
	response.NoContent(c)
}

// RenameModule handles PUT /admin/modules/:id.
func (h *Handler) RenameModule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ModuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if err := h.svc.RenameModule(c.Request.Context(), middleware.CurrentActor(c), id, req); err != nil {
		h.fail(c, err, "failed to rename module")
		return
	}
	response.NoContent(c)
}

// DeleteModule handles DELETE /admin/modules/:id.
func (h *Handler) DeleteModule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteModule(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to delete module")
		return
	}
	response.NoContent(c)
}

// CreateLesson handles POST /admin/modules/:id/lessons.
func (h *Handler) CreateLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req LessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	l, err := h.svc.CreateLesson(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to create lesson")
		return
	}
	response.Created(c, l)
}

// ReorderLessons handles PUT /admin/modules/:id/lessons/order.
func (h *Handler) ReorderLessons(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if err := h.svc.ReorderLessons(c.Request.Context(), middleware.CurrentActor(c), id, req.IDs); err != nil {
		h.fail(c, err, "failed to reorder lessons")
		return
	}
	response.NoContent(c)
}

// GetLesson handles GET /lessons/:id (enrolled members and admins).
func (h *Handler) GetLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := h.svc.GetLesson(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to get lesson")
		return
	}
	response.OK(c, l)
}

// UpdateLesson handles PUT /admin/lessons/:id.
func (h *Handler) UpdateLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req LessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	l, err := h.svc.UpdateLesson(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update lesson")
		return
	}
	response.OK(c, l)
}

// DeleteLesson handles DELETE /admin/lessons/:id.
func (h *Handler) DeleteLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteLesson(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to delete lesson")
		return
	}
	response.NoContent(c)
}

// Enroll handles POST /courses/:id/enroll.
func (h *Handler) Enroll(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.svc.Enroll(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to enroll")
		return
	}
	response.Created(c, e)
}

// Progress handles GET /courses/:id/progress.
func (h *Handler) Progress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Progress(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to get progress")
		return
	}
	response.OK(c, p)
}

// CompleteLesson handles POST /lessons/:id/complete.
func (h *Handler) CompleteLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.CompleteLesson(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to complete lesson")
		return
	}
	response.OK(c, p)
}

// UncompleteLesson handles DELETE /lessons/:id/complete.
func (h *Handler) UncompleteLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.UncompleteLesson(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err, "failed to uncomplete lesson")
		return
	}
	response.OK(c, p)
}
