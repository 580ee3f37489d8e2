package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Lister reads email logs.
type Lister interface {
	List(ctx context.Context, f Filter) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs?user_id=&event_id=&type=&status=&limit= (admin only).
func (h *Handler) List(c *gin.Context) {
	var f Filter
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"user_id", &f.UserID}, {"event_id", &f.EventID}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid "+p.name)
			return
		}
		*p.dst = &id
	}
	f.EmailType = c.Query("type")
	if f.EmailType != "" && !models.KnownEmailType(f.EmailType) {
		response.BadRequest(c, "invalid type")
		return
	}
	f.Status = models.EmailStatus(c.Query("status"))
	if f.Status != "" && !f.Status.Valid() {
		response.BadRequest(c, "invalid status")
		return
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	logs, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
