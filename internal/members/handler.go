package members

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
	"github.com/aura-community/backend/pkg/storage"
)

// Handler handles member directory endpoints.
type Handler struct {
	svc     *Service
	objects storage.ObjectStore
	logger  *zap.Logger
}

// NewHandler creates a members handler. objects may be nil when S3 is not configured.
func NewHandler(svc *Service, objects storage.ObjectStore, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, objects: objects, logger: logger}
}

var errorMappings = []response.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound},
	{Err: storage.ErrTooLarge, Status: http.StatusRequestEntityTooLarge},
	{Err: storage.ErrUnsupportedType, Status: http.StatusBadRequest},
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if !response.Known(err, errorMappings...) {
		h.logger.Error(msg, zap.Error(err))
	}
	response.Error(c, err, msg, errorMappings...)
}

// List handles GET /members?q=&role=&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Query: c.Query("q")}
	if v := c.Query("role"); v != "" {
		if permissions.ParseRole(v) == permissions.RoleNone {
			response.BadRequest(c, "invalid role")
			return
		}
		f.Role = v
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "failed to list members")
		return
	}
	response.OK(c, list)
}

// Get handles GET /members/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	p, err := h.svc.Profile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get member")
		return
	}
	response.OK(c, p)
}

// Me handles GET /members/me.
func (h *Handler) Me(c *gin.Context) {
	p, err := h.svc.Profile(c.Request.Context(), middleware.CurrentActor(c).ID)
	if err != nil {
		h.fail(c, err, "failed to get profile")
		return
	}
	response.OK(c, p)
}

// UpdateMe handles PATCH /members/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	var req Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.CurrentActor(c).ID, req)
	if err != nil {
		h.fail(c, err, "failed to update profile")
		return
	}
	response.OK(c, u)
}

// UploadAvatar handles POST /members/me/avatar (multipart field "file").
func (h *Handler) UploadAvatar(c *gin.Context) {
	if h.objects == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	id := middleware.CurrentActor(c).ID
	ctx := c.Request.Context()
	up, err := storage.UploadForm(ctx, h.objects, file, storage.FolderAvatars, id.String(), storage.MaxImageSize, storage.ValidateImageType)
	if err != nil {
		h.fail(c, err, "failed to upload avatar")
		return
	}
	prev, err := h.svc.SetAvatar(ctx, id, up.URL, up.Key)
	if err != nil {
		_ = h.objects.Delete(context.WithoutCancel(ctx), up.Key)
		h.fail(c, err, "failed to save avatar")
		return
	}
	if prev != "" {
		if err := h.objects.Delete(context.WithoutCancel(ctx), prev); err != nil {
			h.logger.Warn("delete previous avatar", zap.String("key", prev), zap.Error(err))
		}
	}
	response.OK(c, gin.H{"avatar_url": up.URL})
}
