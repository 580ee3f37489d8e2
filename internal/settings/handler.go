package settings

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/cache"
	"github.com/aura-community/backend/pkg/response"
	"github.com/aura-community/backend/pkg/storage"
)

// Getter loads the settings row.
type Getter interface {
	Get(ctx context.Context) (*models.CommunitySettings, error)
}

// Updater applies audited settings changes.
type Updater interface {
	UpdateSettings(ctx context.Context, actor permissions.Actor, in Input) (*models.CommunitySettings, error)
}

// Service reads settings through the view cache.
type Service struct {
	repo  Getter
	views *cache.Views
	ttl   time.Duration
}

// NewService creates a settings reader.
func NewService(repo Getter, views *cache.Views, ttl time.Duration) *Service {
	return &Service{repo: repo, views: views, ttl: ttl}
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) (*models.CommunitySettings, error) {
	key := cache.Key(cache.ScopeSettings, "current")
	var cached models.CommunitySettings
	if s.views.Get(ctx, key, &cached) {
		return &cached, nil
	}
	cur, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.views.Set(ctx, key, cur, s.ttl)
	return cur, nil
}

// CommunityName returns the configured name, or fallback when it cannot be read.
func (s *Service) CommunityName(fallback string) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		cur, err := s.Get(ctx)
		if err != nil || cur.Name == "" {
			return fallback
		}
		return cur.Name
	}
}

var errorMappings = []response.Mapping{
	{Err: permissions.ErrNotAuthorized, Status: http.StatusForbidden},
}

// Handler handles settings endpoints.
type Handler struct {
	svc     *Service
	updater Updater
	objects storage.ObjectStore
	logger  *zap.Logger
}

// NewHandler creates a settings handler. objects may be nil.
func NewHandler(svc *Service, updater Updater, objects storage.ObjectStore, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, updater: updater, objects: objects, logger: logger}
}

// Get handles GET /settings.
func (h *Handler) Get(c *gin.Context) {
	cur, err := h.svc.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("get settings", zap.Error(err))
		response.Internal(c, "failed to load settings")
		return
	}
	response.OK(c, cur)
}

// Update handles PATCH /admin/settings (admin only).
func (h *Handler) Update(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	saved, err := h.updater.UpdateSettings(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		if !response.Known(err, errorMappings...) {
			h.logger.Error("update settings", zap.Error(err))
		}
		response.Error(c, err, "failed to update settings", errorMappings...)
		return
	}
	response.OK(c, saved)
}

// UploadLogo handles POST /admin/settings/logo (admin only, multipart field "file").
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.objects == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	actor := middleware.CurrentActor(c)
	if err := actor.Require(permissions.CanEditSettings); err != nil {
		response.Forbidden(c, err.Error())
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	ctx := c.Request.Context()
	prev, err := h.svc.Get(ctx)
	if err != nil {
		response.Internal(c, "failed to load settings")
		return
	}
	up, err := storage.UploadForm(ctx, h.objects, file, storage.FolderBranding, "community", storage.MaxImageSize, storage.ValidateImageType)
	if err != nil {
		response.Error(c, err, "failed to upload logo",
			response.Mapping{Err: storage.ErrTooLarge, Status: http.StatusRequestEntityTooLarge},
			response.Mapping{Err: storage.ErrUnsupportedType, Status: http.StatusBadRequest, Msg: "logo must be a jpg, png, webp or gif image"})
		return
	}
	saved, err := h.updater.UpdateSettings(ctx, actor, Input{LogoURL: &up.URL, LogoKey: &up.Key})
	if err != nil {
		_ = h.objects.Delete(context.WithoutCancel(ctx), up.Key)
		response.Error(c, err, "failed to save logo", errorMappings...)
		return
	}
	if prev.LogoKey != "" && prev.LogoKey != up.Key {
		if err := h.objects.Delete(ctx, prev.LogoKey); err != nil {
			h.logger.Warn("delete old logo", zap.String("key", prev.LogoKey), zap.Error(err))
		}
	}
	response.OK(c, saved)
}
