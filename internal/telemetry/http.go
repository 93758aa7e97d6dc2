package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigbrain_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bigbrain_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigbrain_sessions_started_total",
		Help: "Sessions started.",
	})

	sessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigbrain_sessions_ended_total",
		Help: "Sessions ended.",
	})

	answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigbrain_answers_total",
		Help: "Answer submissions by outcome.",
	}, []string{"outcome"})
)

// HTTPMetrics is a gin middleware recording request counts and latency per
// route template.
func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func CountSessionStarted() { sessionsStarted.Inc() }

func CountSessionEnded() { sessionsEnded.Inc() }

func CountAnswer(accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	answers.WithLabelValues(outcome).Inc()
}
