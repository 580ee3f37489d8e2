package feed

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
	"github.com/aura-community/backend/pkg/storage"
)

// Handler handles feed HTTP endpoints.
type Handler struct {
	svc     *Service
	objects storage.ObjectStore
	logger  *zap.Logger
}

// NewHandler creates a feed handler. objects may be nil when S3 is not configured.
func NewHandler(svc *Service, objects storage.ObjectStore, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, objects: objects, logger: logger}
}

var errorMappings = []response.Mapping{
	{Err: permissions.ErrNotAuthorized, Status: http.StatusForbidden},
	{Err: ErrPostNotFound, Status: http.StatusNotFound},
	{Err: ErrCommentNotFound, Status: http.StatusNotFound},
	{Err: ErrParentMismatch, Status: http.StatusBadRequest},
	{Err: ErrInvalidTarget, Status: http.StatusBadRequest},
	{Err: ErrAlreadyLiked, Status: http.StatusConflict},
	{Err: ErrNotLiked, Status: http.StatusNotFound},
	{Err: storage.ErrTooLarge, Status: http.StatusRequestEntityTooLarge},
	{Err: storage.ErrUnsupportedType, Status: http.StatusBadRequest},
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

// ListPosts handles GET /posts?category=&author_id=&before=&limit=.
func (h *Handler) ListPosts(c *gin.Context) {
	f := ListFilter{Category: c.Query("category")}
	if v := c.Query("author_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid author_id")
			return
		}
		f.AuthorID = &id
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			response.BadRequest(c, "invalid before")
			return
		}
		f.Before = &t
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	list, err := h.svc.ListPosts(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "failed to list posts")
		return
	}
	response.OK(c, list)
}

// GetPost handles GET /posts/:id.
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPost(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get post")
		return
	}
	response.OK(c, p)
}

// CreatePost handles POST /posts.
func (h *Handler) CreatePost(c *gin.Context) {
	var req PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	p, err := h.svc.CreatePost(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		h.fail(c, err, "failed to create post")
		return
	}
	response.Created(c, p)
}

// UpdatePost handles PUT /posts/:id (author, or moderator via the moderation layer).
func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	p, err := h.svc.UpdatePost(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update post")
		return
	}
	response.OK(c, p)
}

// DeletePost handles DELETE /posts/:id.
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePost(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to delete post")
		return
	}
	response.NoContent(c)
}

// Pin handles POST /posts/:id/pin (moderator).
func (h *Handler) Pin(c *gin.Context) {
	h.setPinned(c, true)
}

// Unpin handles DELETE /posts/:id/pin (moderator).
func (h *Handler) Unpin(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *Handler) setPinned(c *gin.Context, pinned bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.SetPinned(c.Request.Context(), middleware.CurrentActor(c), id, pinned); err != nil {
		h.fail(c, err, "failed to pin post")
		return
	}
	response.OK(c, gin.H{"id": id, "pinned": pinned})
}

// UploadAttachment handles POST /posts/:id/attachment (author only, multipart field "file").
func (h *Handler) UploadAttachment(c *gin.Context) {
	if h.objects == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	ctx := c.Request.Context()
	p, err := h.svc.GetPost(ctx, id)
	if err != nil {
		h.fail(c, err, "failed to get post")
		return
	}
	if p.AuthorID != actor.ID {
		response.Forbidden(c, "only the author can attach files")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	up, err := storage.UploadForm(ctx, h.objects, file, storage.FolderAttachments, id.String(), storage.MaxAttachmentSize, storage.AttachmentAllowed)
	if err != nil {
		h.fail(c, err, "failed to upload attachment")
		return
	}
	if err := h.svc.AttachToPost(ctx, actor, id, up.URL); err != nil {
		_ = h.objects.Delete(context.WithoutCancel(ctx), up.Key)
		h.fail(c, err, "failed to save attachment")
		return
	}
	response.OK(c, up)
}

// ListComments handles GET /posts/:id/comments.
func (h *Handler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListComments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to list comments")
		return
	}
	response.OK(c, list)
}

// CreateComment handles POST /posts/:id/comments.
func (h *Handler) CreateComment(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	cm, err := h.svc.CreateComment(c.Request.Context(), middleware.CurrentActor(c), postID, req)
	if err != nil {
		h.fail(c, err, "failed to create comment")
		return
	}
	response.Created(c, cm)
}

// UpdateComment handles PUT /comments/:id.
func (h *Handler) UpdateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	cm, err := h.svc.UpdateComment(c.Request.Context(), middleware.CurrentActor(c), id, req)
	if err != nil {
		h.fail(c, err, "failed to update comment")
		return
	}
	response.OK(c, cm)
}

// DeleteComment handles DELETE /comments/:id.
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err, "failed to delete comment")
		return
	}
	response.NoContent(c)
}

// LikePost handles POST /posts/:id/like.
func (h *Handler) LikePost(c *gin.Context) { h.like(c, models.LikeTargetPost, true) }

// UnlikePost handles DELETE /posts/:id/like.
func (h *Handler) UnlikePost(c *gin.Context) { h.like(c, models.LikeTargetPost, false) }

// LikeComment handles POST /comments/:id/like.
func (h *Handler) LikeComment(c *gin.Context) { h.like(c, models.LikeTargetComment, true) }

// UnlikeComment handles DELETE /comments/:id/like.
func (h *Handler) UnlikeComment(c *gin.Context) { h.like(c, models.LikeTargetComment, false) }

func (h *Handler) like(c *gin.Context, target models.LikeTarget, like bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	var err error
	if like {
		err = h.svc.Like(c.Request.Context(), actor, target, id)
	} else {
		err = h.svc.Unlike(c.Request.Context(), actor, target, id)
	}
	if err != nil {
		h.fail(c, err, "failed to update like")
		return
	}
	response.OK(c, gin.H{"target_type": target, "target_id": id, "liked": like})
}
