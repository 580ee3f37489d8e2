package points

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/response"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryReader loads a member's ledger entries.
type HistoryReader interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointsEvent, error)
}

// Handler handles leaderboard and ledger endpoints.
type Handler struct {
	boards  *Leaderboards
	history HistoryReader
	logger  *zap.Logger
}

// NewHandler creates a points handler.
func NewHandler(boards *Leaderboards, history HistoryReader, logger *zap.Logger) *Handler {
	return &Handler{boards: boards, history: history, logger: logger}
}

// Leaderboard handles GET /leaderboard?period=all|month|today&limit=.
func (h *Handler) Leaderboard(c *gin.Context) {
	period := Period(c.DefaultQuery("period", string(PeriodAllTime)))
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.boards.Get(c.Request.Context(), period, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			response.BadRequest(c, "period must be one of: all, month, today")
			return
		}
		h.logger.Error("leaderboard", zap.Error(err))
		response.Internal(c, "failed to load leaderboard")
		return
	}
	response.OK(c, list)
}

// History handles GET /points/history for the current member.
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	userID, _ := middleware.Actor(c)
	list, err := h.history.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("points history", zap.Error(err))
		response.Internal(c, "failed to load points history")
		return
	}
	response.OK(c, list)
}

// LevelInfo describes one level and the points needed to reach it.
type LevelInfo struct {
	Level     int `json:"level"`
	Threshold int `json:"threshold"`
}

// Levels handles GET /levels.
func (h *Handler) Levels(c *gin.Context) {
	out := make([]LevelInfo, 0, MaxLevel)
	for i, t := range Thresholds() {
		out = append(out, LevelInfo{Level: i + 1, Threshold: t})
	}
	response.OK(c, gin.H{"levels": out, "rewards": rewardTable()})
}

func rewardTable() map[Action]int {
	out := make(map[Action]int, len(amounts))
	for a, n := range amounts {
		out[a] = n
	}
	return out
}
