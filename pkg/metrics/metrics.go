// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors.
type Metrics struct {
	Registry          *prometheus.Registry
	PointsAwarded     *prometheus.CounterVec
	LevelUps          prometheus.Counter
	ModerationActions *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	JobsProcessed     *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_points_awarded_total",
			Help: "Points granted, by action.",
		}, []string{"action"}),
		LevelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hearth_level_ups_total",
			Help: "Member level increases.",
		}),
		ModerationActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_moderation_actions_total",
			Help: "Audited moderation actions, by action.",
		}, []string{"action"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearth_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_worker_jobs_total",
			Help: "Worker jobs, by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	m.Registry.MustRegister(
		m.PointsAwarded,
		m.LevelUps,
		m.ModerationActions,
		m.HTTPDuration,
		m.JobsProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware observes request latency by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Nil-safe recorders used by services that may run without metrics (CLI, tests).

func (m *Metrics) PointsAwardedInc(action string, amount int) {
	if m == nil {
		return
	}
	m.PointsAwarded.WithLabelValues(action).Add(float64(amount))
}

func (m *Metrics) LevelUpInc() {
	if m == nil {
		return
	}
	m.LevelUps.Inc()
}

func (m *Metrics) ModerationInc(action string) {
	if m == nil {
		return
	}
	m.ModerationActions.WithLabelValues(action).Inc()
}

func (m *Metrics) JobInc(jobType, outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
}
