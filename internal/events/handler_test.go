package events

import (
	"bytes"
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
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

func newTestRouter(t *testing.T, actor permissions.Actor) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, _, _ := newTestService()
	h := NewHandler(svc, time.UTC, zap.NewNop())
	h.now = func() time.Time { return time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, actor.ID)
		c.Set(middleware.ContextUserRole, actor.Role)
	})
	r.GET("/events", h.Month)
	r.GET("/events/occurrences", h.Occurrences)
	r.GET("/events/upcoming", h.Upcoming)
	r.GET("/events/:id", h.Get)
	r.POST("/events", h.Create)
	r.PUT("/events/:id", h.Update)
	r.DELETE("/events/:id", h.Delete)
	return r, svc
}

func send(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Body) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandler_CreateAndMonth(t *testing.T) {
	r, _ := newTestRouter(t, admin)

	w, body := send(r, http.MethodPost, "/events", weeklyInput())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, body.Success)

	// Defaults to the handler's current month (February 2025).
	w, body = send(r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 4)

	w, body = send(r, http.MethodGet, "/events?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 5)

	w, _ = send(r, http.MethodGet, "/events?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateForbiddenForMembers(t *testing.T) {
	r, _ := newTestRouter(t, member)
	w, body := send(r, http.MethodPost, "/events", weeklyInput())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not authorized", body.Error)
}

func TestHandler_CreateValidation(t *testing.T) {
	r, _ := newTestRouter(t, admin)
	in := weeklyInput()
	in.EndTime = in.StartTime.Add(-time.Minute)
	w, body := send(r, http.MethodPost, "/events", in)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body.Fields, "end_time")
}

func TestHandler_GetUpdateDelete(t *testing.T) {
	r, svc := newTestRouter(t, admin)
	e, err := svc.Create(context.Background(), admin, weeklyInput())
	require.NoError(t, err)

	w, _ := send(r, http.MethodGet, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = send(r, http.MethodGet, "/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = send(r, http.MethodGet, "/events/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	in := weeklyInput()
	in.Location = "Room 2"
	w, _ = send(r, http.MethodPut, "/events/"+e.ID.String(), in)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = send(r, http.MethodDelete, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = send(r, http.MethodDelete, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_OccurrencesAndUpcoming(t *testing.T) {
	r, svc := newTestRouter(t, member)
	_, err := svc.Create(context.Background(), admin, weeklyInput())
	require.NoError(t, err)

	w, body := send(r, http.MethodGet, "/events/occurrences?from=2025-01-01T00:00:00Z&to=2025-01-31T23:59:59Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body.Data, 4)

	w, _ = send(r, http.MethodGet, "/events/occurrences?from=2025-01-01&to=2025-01-31", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = send(r, http.MethodGet, "/events/occurrences?from=2025-01-01T00:00:00Z&to=2027-01-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = send(r, http.MethodGet, "/events/upcoming?days=91", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = send(r, http.MethodGet, "/events/upcoming?days=30", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
