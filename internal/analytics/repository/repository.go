package repository

import (
	"context"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"gorm.io/gorm"
)

// Repositories analytics storage
type Repositories struct {
	Activity  *ActivityRepository
	Metric    *MetricRepository
	Statistic *StatisticRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Activity:  &ActivityRepository{db: db},
		Metric:    &MetricRepository{db: db},
		Statistic: &StatisticRepository{db: db},
	}
}

// ActivityFilter list filters, zero values are ignored
type ActivityFilter struct {
	UserID       string
	ActivityType entity.ActivityType
	EntityType   entity.EntityType
	EntityID     string
	From         *time.Time
	To           *time.Time
}

// ActivityRepository activity log storage
type ActivityRepository struct {
	db *gorm.DB
}

func (r *ActivityRepository) Create(ctx context.Context, log *entity.ActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *ActivityRepository) List(ctx context.Context, f ActivityFilter, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	var items []entity.ActivityLog
	var total int64

	query := r.filter(r.db.WithContext(ctx).Model(&entity.ActivityLog{}), f)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// All every matching row, newest first, capped at limit
func (r *ActivityRepository) All(ctx context.Context, f ActivityFilter, limit int) ([]entity.ActivityLog, error) {
	var items []entity.ActivityLog
	query := r.filter(r.db.WithContext(ctx).Model(&entity.ActivityLog{}), f).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}

// Between rows with from <= created_at < to
func (r *ActivityRepository) Between(ctx context.Context, from, to time.Time) ([]entity.ActivityLog, error) {
	var items []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// DeleteBefore removes rows created at or before cutoff
func (r *ActivityRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at <= ?", cutoff).Delete(&entity.ActivityLog{})
	return res.RowsAffected, res.Error
}

func (r *ActivityRepository) filter(query *gorm.DB, f ActivityFilter) *gorm.DB {
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.ActivityType != "" {
		query = query.Where("activity_type = ?", f.ActivityType)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		query = query.Where("entity_id = ?", f.EntityID)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}
	return query
}

// OperationAverage aggregate row of SlowestOperations
type OperationAverage struct {
	Operation   string  `json:"operation"`
	AvgDuration float64 `json:"avg_duration"`
	Count       int64   `json:"count"`
}

// MetricRepository performance metric storage
type MetricRepository struct {
	db *gorm.DB
}

func (r *MetricRepository) Create(ctx context.Context, m *entity.PerformanceMetric) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MetricRepository) ByOperation(ctx context.Context, operation string, limit int) ([]entity.PerformanceMetric, error) {
	var items []entity.PerformanceMetric
	err := r.db.WithContext(ctx).
		Where("operation = ?", operation).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *MetricRepository) ByType(ctx context.Context, t entity.MetricType, limit int) ([]entity.PerformanceMetric, error) {
	var items []entity.PerformanceMetric
	err := r.db.WithContext(ctx).
		Where("metric_type = ?", t).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// Between samples with from <= created_at <= to, optionally of one type
func (r *MetricRepository) Between(ctx context.Context, from, to time.Time, t entity.MetricType) ([]entity.PerformanceMetric, error) {
	var items []entity.PerformanceMetric
	query := r.db.WithContext(ctx).Where("created_at >= ? AND created_at <= ?", from, to)
	if t != "" {
		query = query.Where("metric_type = ?", t)
	}
	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

// AverageDuration mean duration of an operation; 0 when there are no samples
func (r *MetricRepository) AverageDuration(ctx context.Context, operation string, from, to *time.Time) (float64, error) {
	var avg *float64
	query := r.db.WithContext(ctx).Model(&entity.PerformanceMetric{}).
		Select("AVG(duration_ms)").
		Where("operation = ?", operation)
	if from != nil && to != nil {
		query = query.Where("created_at >= ? AND created_at <= ?", *from, *to)
	}
	if err := query.Row().Scan(&avg); err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *MetricRepository) SlowestOperations(ctx context.Context, limit int) ([]OperationAverage, error) {
	var rows []OperationAverage
	err := r.db.WithContext(ctx).Model(&entity.PerformanceMetric{}).
		Select("operation, AVG(duration_ms) AS avg_duration, COUNT(*) AS count").
		Group("operation").
		Order("avg_duration DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// CountByOperation total and failed (status >= 400) samples
func (r *MetricRepository) CountByOperation(ctx context.Context, operation string) (total, failed int64, err error) {
	base := r.db.WithContext(ctx).Model(&entity.PerformanceMetric{}).Where("operation = ?", operation)
	if err = base.Count(&total).Error; err != nil || total == 0 {
		return total, 0, err
	}
	err = r.db.WithContext(ctx).Model(&entity.PerformanceMetric{}).
		Where("operation = ? AND status_code >= ?", operation, 400).
		Count(&failed).Error
	return total, failed, err
}

// StatisticRepository aggregated statistics storage
type StatisticRepository struct {
	db *gorm.DB
}

func (r *StatisticRepository) Create(ctx context.Context, s *entity.Statistic) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StatisticRepository) ByType(ctx context.Context, t entity.StatisticType, limit int) ([]entity.Statistic, error) {
	var items []entity.Statistic
	err := r.db.WithContext(ctx).
		Where("statistic_type = ?", t).
		Order("period_end DESC, created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *StatisticRepository) ByTimePeriod(ctx context.Context, p entity.TimePeriod, limit int) ([]entity.Statistic, error) {
	var items []entity.Statistic
	err := r.db.WithContext(ctx).
		Where("time_period = ?", p).
		Order("period_end DESC, created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *StatisticRepository) Latest(ctx context.Context, limit int) ([]entity.Statistic, error) {
	var items []entity.Statistic
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
