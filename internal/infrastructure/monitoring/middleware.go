package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		metrics.RecordHTTPRequest(method, path, status, duration)
	}
}

// StageTimer measures the duration of one pipeline stage
type StageTimer struct {
	start   time.Time
	metrics *Metrics
	stage   string
}

// NewStageTimer creates a new stage timer
func NewStageTimer(metrics *Metrics, stage string) *StageTimer {
	return &StageTimer{
		start:   time.Now(),
		metrics: metrics,
		stage:   stage,
	}
}

// Stop stops the timer and records the duration
func (t *StageTimer) Stop() {
	t.metrics.RecordStage(t.stage, time.Since(t.start))
}
