package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/mailer"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/response"
)

// ContextUserID is the gin context key holding the authenticated user's id.
const ContextUserID = "user_id"

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
	Locale   string `json:"locale" binding:"omitempty,max=16"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for PUT /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// UserStore is the persistence the handler needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName, locale string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// EmailQueue enqueues outgoing mail.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo          UserStore
	jwt           *JWTService
	emails        EmailQueue
	communityName func(ctx context.Context) string
	logger        *zap.Logger
}

// NewHandler creates an auth handler. emails may be nil.
func NewHandler(repo UserStore, jwt *JWTService, emails EmailQueue, communityName func(ctx context.Context) string, logger *zap.Logger) *Handler {
	if communityName == nil {
		communityName = func(context.Context) string { return "the community" }
	}
	return &Handler{repo: repo, jwt: jwt, emails: emails, communityName: communityName, logger: logger}
}

// Register handles POST /auth/register. The first account becomes the owner.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	ctx := c.Request.Context()
	user, err := h.repo.Create(ctx, req.Email, hash, req.FullName, req.Locale)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Role.String())
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	if h.emails != nil {
		uid := user.ID
		if err := h.emails.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      models.EmailTypeWelcome,
			UserID:         &uid,
			RecipientEmail: user.Email,
			Subject:        "Welcome to " + h.communityName(ctx),
			BodyHTML:       mailer.WelcomeHTML(user.FullName, h.communityName(ctx)),
		}); err != nil {
			h.logger.Warn("enqueue welcome email", zap.String("user_id", uid.String()), zap.Error(err))
		}
	}

	h.logger.Info("member registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role.String()))
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login. Banned members cannot sign in.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("login lookup", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if user.IsBanned() {
		response.Forbidden(c, ErrBanned.Error())
		return
	}
	if NeedsRehash(user.Password) {
		if hash, err := HashPassword(req.Password); err == nil {
			if err := h.repo.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
				h.logger.Warn("rehash password", zap.String("user_id", user.ID.String()), zap.Error(err))
			}
		}
	}

	token, err := h.jwt.Generate(user.ID, user.Role.String())
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err, "failed to load user", response.Mapping{Err: ErrUserNotFound, Status: http.StatusNotFound})
		return
	}
	response.OK(c, user)
}

// ChangePassword handles PUT /auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()
	user, err := h.repo.GetByID(ctx, userID)
	if err != nil {
		response.Error(c, err, "failed to load user", response.Mapping{Err: ErrUserNotFound, Status: http.StatusNotFound})
		return
	}
	if !CheckPassword(req.CurrentPassword, user.Password) {
		response.BadRequest(c, "current password is incorrect")
		return
	}
	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(ctx, userID, hash); err != nil {
		response.Internal(c, "failed to update password")
		return
	}
	response.NoContent(c)
}
