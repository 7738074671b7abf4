package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"github.com/datachef-lab/taskify-backend/internal/shared/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	analytics "github.com/datachef-lab/taskify-backend/internal/analytics/service"
)

// AnalyticsHandler activity logs, statistics, performance samples and jobs
type AnalyticsHandler struct {
	svc    *analytics.Services
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

func NewAnalyticsHandler(svc *analytics.Services, sched *scheduler.Scheduler, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, sched: sched, logger: logger}
}

// ListActivities GET /api/v1/analytics/activities
// Filters: user_id, activity_type, entity_type, entity_id, from, to
func (h *AnalyticsHandler) ListActivities(c *gin.Context) {
	f, ok := activityFilter(c)
	if !ok {
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Activity.List(c.Request.Context(), f, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// ExportActivities GET /api/v1/analytics/activities/export
func (h *AnalyticsHandler) ExportActivities(c *gin.Context) {
	f, ok := activityFilter(c)
	if !ok {
		return
	}
	book, filename, err := h.svc.Activity.ExportXLSX(c.Request.Context(), f)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer book.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := book.Write(c.Writer); err != nil {
		h.logger.Warn("write activity export", zap.Error(err))
	}
}

// ListStatistics GET /api/v1/analytics/statistics?period=DAILY&limit=
func (h *AnalyticsHandler) ListStatistics(c *gin.Context) {
	limit := queryInt(c, "limit", 30)
	var (
		items []aentity.Statistic
		err   error
	)
	if period := c.Query("period"); period != "" {
		items, err = h.svc.Statistics.ListByTimePeriod(c.Request.Context(), aentity.TimePeriod(strings.ToUpper(period)), limit)
	} else {
		items, err = h.svc.Statistics.Latest(c.Request.Context(), limit)
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// StatisticsByType GET /api/v1/analytics/statistics/:type
func (h *AnalyticsHandler) StatisticsByType(c *gin.Context) {
	t := aentity.StatisticType(strings.ToUpper(c.Param("type")))
	items, err := h.svc.Statistics.ListByType(c.Request.Context(), t, queryInt(c, "limit", 30))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// ListPerformance GET /api/v1/analytics/performance
// One of: operation=, type=, or from= and to=
func (h *AnalyticsHandler) ListPerformance(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		items []aentity.PerformanceMetric
		err   error
	)
	switch {
	case c.Query("operation") != "":
		items, err = h.svc.Performance.ByOperation(ctx, c.Query("operation"))
	case c.Query("type") != "":
		items, err = h.svc.Performance.ByType(ctx, aentity.MetricType(strings.ToUpper(c.Query("type"))))
	default:
		from, to, ok := timeRange(c)
		if !ok {
			return
		}
		if from == nil || to == nil {
			BadRequest(c, "one of operation, type or from/to is required")
			return
		}
		items, err = h.svc.Performance.ByTimeRange(ctx, *from, *to)
	}
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// AverageDuration GET /api/v1/analytics/performance/average/*operation
func (h *AnalyticsHandler) AverageDuration(c *gin.Context) {
	operation := strings.TrimPrefix(c.Param("operation"), "/")
	if operation == "" {
		BadRequest(c, "operation is required")
		return
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	avg, err := h.svc.Performance.AverageDuration(c.Request.Context(), operation, from, to)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"operation": operation, "average_ms": avg})
}

// SlowestOperations GET /api/v1/analytics/performance/slowest?limit=10
func (h *AnalyticsHandler) SlowestOperations(c *gin.Context) {
	items, err := h.svc.Performance.SlowestOperations(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// ErrorRate GET /api/v1/analytics/performance/error-rate/*operation
func (h *AnalyticsHandler) ErrorRate(c *gin.Context) {
	operation := strings.TrimPrefix(c.Param("operation"), "/")
	if operation == "" {
		BadRequest(c, "operation is required")
		return
	}
	rate, err := h.svc.Performance.ErrorRate(c.Request.Context(), operation)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"operation": operation, "error_rate": rate})
}

// ListJobs GET /api/v1/analytics/jobs
func (h *AnalyticsHandler) ListJobs(c *gin.Context) {
	if h.sched == nil {
		Success(c, gin.H{"items": []scheduler.JobInfo{}})
		return
	}
	Success(c, gin.H{"items": h.sched.Jobs()})
}

// RunJob POST /api/v1/analytics/jobs/:name/run
func (h *AnalyticsHandler) RunJob(c *gin.Context) {
	if h.sched == nil {
		NotFound(c, "scheduler disabled")
		return
	}
	name := c.Param("name")
	err := h.sched.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		NotFound(c, "job not found: "+name)
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, scheduler.ErrLocked):
		Conflict(c, err.Error())
	case err != nil:
		h.logger.Warn("manual job run failed", zap.String("job", name), zap.Error(err))
		InternalError(c, "job failed: "+err.Error())
	default:
		Success(c, gin.H{"job": name, "status": "completed"})
	}
}

func activityFilter(c *gin.Context) (repository.ActivityFilter, bool) {
	from, to, ok := timeRange(c)
	if !ok {
		return repository.ActivityFilter{}, false
	}
	return repository.ActivityFilter{
		UserID:       c.Query("user_id"),
		ActivityType: aentity.ActivityType(strings.ToUpper(c.Query("activity_type"))),
		EntityType:   aentity.EntityType(strings.ToUpper(c.Query("entity_type"))),
		EntityID:     c.Query("entity_id"),
		From:         from,
		To:           to,
	}, true
}

// timeRange parses optional from/to as RFC 3339 or YYYY-MM-DD
func timeRange(c *gin.Context) (from, to *time.Time, ok bool) {
	var err error
	if from, err = parseTime(c.Query("from")); err != nil {
		BadRequest(c, "invalid from: "+err.Error())
		return nil, nil, false
	}
	if to, err = parseTime(c.Query("to")); err != nil {
		BadRequest(c, "invalid to: "+err.Error())
		return nil, nil, false
	}
	if from != nil && to != nil && from.After(*to) {
		BadRequest(c, "from must be before to")
		return nil, nil, false
	}
	return from, to, true
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
