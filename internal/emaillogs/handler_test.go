package emaillogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
)

type fakeLister struct{ got Filter }

func (f *fakeLister) List(_ context.Context, filter Filter) ([]*models.EmailLog, error) {
	f.got = filter
	return []*models.EmailLog{}, nil
}

func TestHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeLister{}
	r := gin.New()
	r.GET("/admin/email-logs", NewHandler(repo, zap.NewNop()).List)

	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/admin/email-logs"))
	assert.Equal(t, defaultLimit, repo.got.Limit)

	user := uuid.New()
	assert.Equal(t, http.StatusOK, get("/admin/email-logs?user_id="+user.String()+"&status=failed&limit=1000"))
	require.NotNil(t, repo.got.UserID)
	assert.Equal(t, user, *repo.got.UserID)
	assert.Nil(t, repo.got.EventID)
	assert.Equal(t, models.EmailLogStatusFailed, repo.got.Status)
	assert.Equal(t, maxLimit, repo.got.Limit)

	assert.Equal(t, http.StatusBadRequest, get("/admin/email-logs?event_id=x"))
	assert.Equal(t, http.StatusBadRequest, get("/admin/email-logs?status=bounced"))
	assert.Equal(t, http.StatusBadRequest, get("/admin/email-logs?type=newsletter"))
	assert.Equal(t, http.StatusOK, get("/admin/email-logs?type=level_up"))
	assert.Equal(t, models.EmailTypeLevelUp, repo.got.EmailType)
}
