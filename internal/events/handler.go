package events

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

// Calendar is the event service as seen by HTTP handlers.
type Calendar interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Month(ctx context.Context, year int, month time.Month) ([]models.EventOccurrence, error)
	Range(ctx context.Context, from, to time.Time) ([]models.EventOccurrence, error)
	Upcoming(ctx context.Context, days int) ([]models.EventOccurrence, error)
	Create(ctx context.Context, actor permissions.Actor, in Input) (*models.Event, error)
	Update(ctx context.Context, actor permissions.Actor, id uuid.UUID, in Input) (*models.Event, error)
	Delete(ctx context.Context, actor permissions.Actor, id uuid.UUID) error
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    Calendar
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an event handler. loc picks the default month.
func NewHandler(svc Calendar, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc, now: time.Now, logger: logger}
}

var errorMappings = []response.Mapping{
	{Err: permissions.ErrNotAuthorized, Status: http.StatusForbidden},
	{Err: ErrNotFound, Status: http.StatusNotFound},
	{Err: ErrRangeTooLarge, Status: http.StatusBadRequest},
	{Err: ErrInvalidRange, Status: http.StatusBadRequest},
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to get event", errorMappings...)
		return
	}
	response.OK(c, e)
}

// Month handles GET /events?year=&month=. Defaults to the current month.
func (h *Handler) Month(c *gin.Context) {
	now := h.now().In(h.loc)
	year, month := now.Year(), int(now.Month())
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			response.BadRequest(c, "invalid year")
			return
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			response.BadRequest(c, "invalid month")
			return
		}
		month = m
	}
	list, err := h.svc.Month(c.Request.Context(), year, time.Month(month))
	if err != nil {
		h.logger.Error("calendar month", zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		response.Error(c, err, "failed to load calendar", errorMappings...)
		return
	}
	response.OK(c, list)
}

// Occurrences handles GET /events/occurrences?from=&to= (RFC3339).
func (h *Handler) Occurrences(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.BadRequest(c, "invalid from")
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		response.BadRequest(c, "invalid to")
		return
	}
	list, err := h.svc.Range(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err, "failed to load occurrences", errorMappings...)
		return
	}
	response.OK(c, list)
}

// Upcoming handles GET /events/upcoming?days=N (default 7, at most 90).
func (h *Handler) Upcoming(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > MaxUpcomingDays {
		response.BadRequest(c, "days must be between 1 and 90")
		return
	}
	list, err := h.svc.Upcoming(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err, "failed to load upcoming events", errorMappings...)
		return
	}
	response.OK(c, list)
}

// Create handles POST /events (admin only).
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		h.logIfInternal(err, "create event")
		response.Error(c, err, "failed to create event", errorMappings...)
		return
	}
	response.Created(c, e)
}

// Update handles PUT /events/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, in)
	if err != nil {
		h.logIfInternal(err, "update event")
		response.Error(c, err, "failed to update event", errorMappings...)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.logIfInternal(err, "delete event")
		response.Error(c, err, "failed to delete event", errorMappings...)
		return
	}
	response.NoContent(c)
}

func (h *Handler) logIfInternal(err error, msg string) {
	if !response.Known(err, errorMappings...) {
		h.logger.Error(msg, zap.Error(err))
	}
}
