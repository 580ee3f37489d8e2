package moderation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

// BanRequest is the body for POST /admin/members/:id/ban.
type BanRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// RoleRequest is the body for PUT /admin/members/:id/role.
type RoleRequest struct {
	Role permissions.Role `json:"role" binding:"required"`
}

// ErrorMappings renders moderation errors; other packages reuse it for delegated actions.
var ErrorMappings = []response.Mapping{
	{Err: permissions.ErrNotAuthorized, Status: http.StatusForbidden},
	{Err: ErrNotFound, Status: http.StatusNotFound},
	{Err: ErrInvalidRole, Status: http.StatusBadRequest},
}

// Handler handles member moderation endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a moderation handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if !response.Known(err, ErrorMappings...) {
		h.logger.Error(msg, zap.Error(err))
	}
	response.Error(c, err, msg, ErrorMappings...)
}

// Ban handles POST /admin/members/:id/ban.
func (h *Handler) Ban(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	var req BanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationFailed(c, err)
			return
		}
	}
	if err := h.svc.BanUser(c.Request.Context(), middleware.CurrentActor(c), id, req.Reason); err != nil {
		h.fail(c, err, "failed to ban member")
		return
	}
	response.OK(c, gin.H{"id": id, "banned": true})
}

// Unban handles DELETE /admin/members/:id/ban.
func (h *Handler) Unban(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if err := h.svc.UnbanUser(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to unban member")
		return
	}
	response.OK(c, gin.H{"id": id, "banned": false})
}

// ChangeRole handles PUT /admin/members/:id/role.
func (h *Handler) ChangeRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.svc.ChangeRole(c.Request.Context(), middleware.CurrentActor(c), id, req.Role); err != nil {
		h.fail(c, err, "failed to change role")
		return
	}
	response.OK(c, gin.H{"id": id, "role": req.Role})
}
