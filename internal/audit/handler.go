package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/response"
)

// Lister loads audit logs.
type Lister interface {
	List(ctx context.Context, f Filter) ([]models.AuditLog, error)
}

// Handler serves the audit log.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/audit-logs (admin only).
// Query: actor_id, target_id, action, target_type, before (RFC3339), limit.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid actor_id")
			return
		}
		f.ActorID = &id
	}
	if v := c.Query("target_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid target_id")
			return
		}
		f.TargetID = &id
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid before")
			return
		}
		f.Before = &t
	}
	f.Action = models.AuditAction(c.Query("action"))
	f.TargetType = c.Query("target_type")
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list audit logs", zap.Error(err))
		response.Internal(c, "failed to list audit logs")
		return
	}
	response.OK(c, list)
}
