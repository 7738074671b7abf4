package middleware

import (
	"fmt"
	"strings"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/gin-gonic/gin"
)

// MetricRecorder stores API timing samples
type MetricRecorder interface {
	RecordAsync(m *aentity.PerformanceMetric)
}

var performanceExcluded = []string{"/health", "/metrics", "/api/health", "/assets/", "/static/", "/api/v1/sse/"}

// timedWriter stamps X-Response-Time before the headers go out
type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.Header().Set("X-Response-Time", fmt.Sprintf("%.2fms", float64(time.Since(w.start).Microseconds())/1000))
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

// Performance records an API_RESPONSE_TIME sample per request. The
// operation is "METHOD route", falling back to the raw path for unmatched
// routes.
func Performance(recorder MetricRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range performanceExcluded {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		start := time.Now()
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: start}

		c.Next()

		duration := float64(time.Since(start).Microseconds()) / 1000
		route := c.FullPath()
		if route == "" {
			route = path
		}
		status := c.Writer.Status()
		size := c.Writer.Size()
		m := &aentity.PerformanceMetric{
			MetricType: aentity.MetricAPIResponseTime,
			Operation:  c.Request.Method + " " + route,
			DurationMs: duration,
			HTTPMethod: c.Request.Method,
			StatusCode: &status,
			UserID:     c.GetString("user_id"),
			RequestDetails: aentity.MarshalJSONValue(map[string]interface{}{
				"path":     path,
				"query":    c.Request.URL.RawQuery,
				"referrer": c.Request.Referer(),
			}),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if size >= 0 {
			m.ResponseSize = &size
		}
		if recorder != nil {
			recorder.RecordAsync(m)
		}
	}
}
