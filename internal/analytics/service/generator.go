package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"go.uber.org/zap"
)

// TaskCounter counts task instances opened and closed in a window
type TaskCounter interface {
	CountTasksCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountTasksClosed(ctx context.Context, from, to time.Time) (int64, error)
}

// Generator builds periodic statistics from activity logs, metrics and tasks
type Generator struct {
	activities *repository.ActivityRepository
	metrics    *repository.MetricRepository
	stats      *StatisticsService
	tasks      TaskCounter
	logger     *zap.Logger
}

func NewGenerator(repos *repository.Repositories, stats *StatisticsService, tasks TaskCounter, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		activities: repos.Activity,
		metrics:    repos.Metric,
		stats:      stats,
		tasks:      tasks,
		logger:     logger,
	}
}

// Count a key with its number of occurrences
type Count struct {
	Key   string `json:"-"`
	Count int    `json:"count"`
}

// UserCount entry of mostActiveUsers
type UserCount struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

// TypeCount entry of mostCommonActionTypes / mostAccessedResources
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// UserActivitySummary data of the daily user activity statistic
type UserActivitySummary struct {
	TotalActivities          int         `json:"totalActivities"`
	UniqueUsers              int         `json:"uniqueUsers"`
	AverageActivitiesPerUser float64     `json:"averageActivitiesPerUser"`
	MostActiveUsers          []UserCount `json:"mostActiveUsers"`
	MostCommonActionTypes    []TypeCount `json:"mostCommonActionTypes"`
	MostAccessedResources    []TypeCount `json:"mostAccessedResources"`
}

// OperationStats duration distribution of one operation
type OperationStats struct {
	Operation string  `json:"operation"`
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Average   float64 `json:"average"`
	P50       float64 `json:"p50"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

// APIPerformanceSummary data of the API performance statistic
type APIPerformanceSummary struct {
	TotalAPICalls     int              `json:"totalApiCalls"`
	UniqueEndpoints   int              `json:"uniqueEndpoints"`
	OperationStats    []OperationStats `json:"operationStats"`
	SlowestOperations []OperationStats `json:"slowestOperations"`
}

// TaskCompletionSummary data of the task completion statistic
type TaskCompletionSummary struct {
	TasksCreated   int64   `json:"tasksCreated"`
	TasksClosed    int64   `json:"tasksClosed"`
	CompletionRate float64 `json:"completionRate"`
}

// RunAll generates every daily statistic. Each generator failing is logged
// and reported; the others still run.
func (g *Generator) RunAll(ctx context.Context, now time.Time) error {
	var errs []error
	if _, err := g.DailyUserActivity(ctx, now); err != nil {
		g.logger.Error("daily user activity statistics failed", zap.Error(err))
		errs = append(errs, err)
	}
	if _, err := g.APIPerformance(ctx, now); err != nil {
		g.logger.Error("api performance statistics failed", zap.Error(err))
		errs = append(errs, err)
	}
	if g.tasks != nil {
		if _, err := g.TaskCompletion(ctx, now); err != nil {
			g.logger.Error("task completion statistics failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dayWindow [yesterday 00:00, today 00:00) in now's location
func dayWindow(now time.Time) (time.Time, time.Time) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return end.AddDate(0, 0, -1), end
}

// DailyUserActivity summarises the previous day's activity. Returns nil
// without storing anything when there was none.
func (g *Generator) DailyUserActivity(ctx context.Context, now time.Time) (*entity.Statistic, error) {
	start, end := dayWindow(now)
	logs, err := g.activities.Between(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	if len(logs) == 0 {
		g.logger.Info("no activities for the previous day, skipping user activity statistics")
		return nil, nil
	}

	users := map[string]int{}
	types := map[string]int{}
	resources := map[string]int{}
	for _, l := range logs {
		users[l.UserID]++
		types[string(l.ActivityType)]++
		resource := string(l.EntityType)
		if resource == "" {
			resource = "unknown"
		}
		resources[resource]++
	}

	summary := UserActivitySummary{
		TotalActivities:          len(logs),
		UniqueUsers:              len(users),
		AverageActivitiesPerUser: float64(len(logs)) / float64(len(users)),
	}
	for _, c := range topCounts(users, 5) {
		summary.MostActiveUsers = append(summary.MostActiveUsers, UserCount{UserID: c.Key, Count: c.Count})
	}
	for _, c := range topCounts(types, 5) {
		summary.MostCommonActionTypes = append(summary.MostCommonActionTypes, TypeCount{Type: c.Key, Count: c.Count})
	}
	for _, c := range topCounts(resources, 5) {
		summary.MostAccessedResources = append(summary.MostAccessedResources, TypeCount{Type: c.Key, Count: c.Count})
	}

	return g.stats.Create(ctx, CreateStatisticInput{
		Type:        entity.StatUserActivity,
		Name:        "Daily User Activity Summary",
		TimePeriod:  entity.PeriodDaily,
		PeriodStart: start,
		PeriodEnd:   end,
		Data:        summary,
		Category:    "user_engagement",
		Description: "Summary of user activities for the previous day",
		Dimensions:  map[string]interface{}{"daily": true, "user": true, "activity": true},
	})
}

// APIPerformance summarises API response times of the last 24 hours
func (g *Generator) APIPerformance(ctx context.Context, now time.Time) (*entity.Statistic, error) {
	end := now
	start := now.Add(-24 * time.Hour)
	metrics, err := g.metrics.Between(ctx, start, end, entity.MetricAPIResponseTime)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	if len(metrics) == 0 {
		g.logger.Info("no api metrics for the last 24 hours, skipping performance statistics")
		return nil, nil
	}

	byOperation := map[string][]float64{}
	for _, m := range metrics {
		byOperation[m.Operation] = append(byOperation[m.Operation], m.DurationMs)
	}

	ops := make([]OperationStats, 0, len(byOperation))
	for op, durations := range byOperation {
		ops = append(ops, Distribution(op, durations))
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Average != ops[j].Average {
			return ops[i].Average > ops[j].Average
		}
		return ops[i].Operation < ops[j].Operation
	})

	slowest := ops
	if len(slowest) > 5 {
		slowest = slowest[:5]
	}
	summary := APIPerformanceSummary{
		TotalAPICalls:     len(metrics),
		UniqueEndpoints:   len(byOperation),
		OperationStats:    ops,
		SlowestOperations: slowest,
	}

	return g.stats.Create(ctx, CreateStatisticInput{
		Type:        entity.StatPerformanceMetric,
		Name:        "API Performance Summary",
		TimePeriod:  entity.PeriodDaily,
		PeriodStart: start,
		PeriodEnd:   end,
		Data:        summary,
		Category:    "system_performance",
		Description: "Summary of API performance metrics for the last 24 hours",
		Dimensions:  map[string]interface{}{"daily": true, "api": true, "performance": true},
	})
}

// TaskCompletion tasks opened and closed during the previous day
func (g *Generator) TaskCompletion(ctx context.Context, now time.Time) (*entity.Statistic, error) {
	start, end := dayWindow(now)
	created, err := g.tasks.CountTasksCreated(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("count created tasks: %w", err)
	}
	closed, err := g.tasks.CountTasksClosed(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("count closed tasks: %w", err)
	}
	if created == 0 && closed == 0 {
		return nil, nil
	}

	summary := TaskCompletionSummary{TasksCreated: created, TasksClosed: closed}
	if created > 0 {
		summary.CompletionRate = math.Round(float64(closed)/float64(created)*10000) / 100
	}

	return g.stats.Create(ctx, CreateStatisticInput{
		Type:        entity.StatTaskCompletionRate,
		Name:        "Daily Task Completion",
		TimePeriod:  entity.PeriodDaily,
		PeriodStart: start,
		PeriodEnd:   end,
		Data:        summary,
		Category:    "task_management",
		Description: "Tasks opened and closed during the previous day",
		Dimensions:  map[string]interface{}{"daily": true, "task": true},
	})
}

// Distribution count, min, max, mean and nearest-rank percentiles of durations
func Distribution(operation string, durations []float64) OperationStats {
	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	st := OperationStats{Operation: operation, Count: len(sorted)}
	if len(sorted) == 0 {
		return st
	}
	var total float64
	for _, d := range sorted {
		total += d
	}
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	st.Average = total / float64(len(sorted))
	st.P50 = percentile(sorted, 0.50)
	st.P95 = percentile(sorted, 0.95)
	st.P99 = percentile(sorted, 0.99)
	return st
}

func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topCounts n most frequent keys, ties broken by key
func topCounts(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
