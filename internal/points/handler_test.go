package points

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

type fakeHistory struct {
	user  uuid.UUID
	limit int
}

func (f *fakeHistory) History(_ context.Context, userID uuid.UUID, limit int) ([]models.PointsEvent, error) {
	f.user, f.limit = userID, limit
	return []models.PointsEvent{{UserID: userID, Amount: 5, Action: string(ActionPostCreated)}}, nil
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	me := uuid.New()
	hist := &fakeHistory{}
	board := &fakeBoard{}
	h := NewHandler(NewLeaderboards(board, nil, time.Minute, time.UTC), hist, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, me)
		c.Set(middleware.ContextUserRole, permissions.RoleMember)
	})
	r.GET("/leaderboard", h.Leaderboard)
	r.GET("/points/history", h.History)
	r.GET("/levels", h.Levels)

	get := func(path string) (*httptest.ResponseRecorder, response.Body) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body response.Body
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w, body
	}

	w, _ := get("/leaderboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultLeaderboardLimit, board.allTimeLimit)

	w, _ = get("/leaderboard?period=month&limit=5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, board.since.IsZero())

	w, _ = get("/leaderboard?period=week")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get("/points/history?limit=9999")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, me, hist.user)
	assert.Equal(t, maxHistoryLimit, hist.limit)

	w, body := get("/levels")
	require.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]interface{})
	levels := data["levels"].([]interface{})
	require.Len(t, levels, MaxLevel)
	assert.EqualValues(t, 50, levels[1].(map[string]interface{})["threshold"])
	assert.EqualValues(t, 50, data["rewards"].(map[string]interface{})["COURSE_COMPLETED"])
}
