package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.PointsAwardedInc("POST_CREATED", 5)
	m.PointsAwardedInc("POST_CREATED", 5)
	m.LevelUpInc()
	m.ModerationInc("USER_BANNED")

	assert.Equal(t, 10.0, testutil.ToFloat64(m.PointsAwarded.WithLabelValues("POST_CREATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LevelUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModerationActions.WithLabelValues("USER_BANNED")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PointsAwardedInc("X", 1)
		m.LevelUpInc()
		m.ModerationInc("X")
		m.JobInc("email", "ok")
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/metrics", m.Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hearth_http_request_duration_seconds")
}
