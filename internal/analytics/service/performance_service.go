package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMetricLimit = 500

// PerformanceService timing samples
type PerformanceService struct {
	repo   *repository.MetricRepository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewPerformanceService(repo *repository.MetricRepository, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{repo: repo, logger: logger}
}

func (s *PerformanceService) Record(ctx context.Context, m *entity.PerformanceMetric) error {
	if m.Operation == "" {
		return errors.New("operation is required")
	}
	if m.MetricType == "" {
		m.MetricType = entity.MetricAPIResponseTime
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

// RecordAsync stores the sample in the background
func (s *PerformanceService) RecordAsync(m *entity.PerformanceMetric) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Record(ctx, m); err != nil {
			s.logger.Warn("performance metric dropped", zap.String("operation", m.Operation), zap.Error(err))
		}
	}()
}

func (s *PerformanceService) Wait() {
	s.wg.Wait()
}

func (s *PerformanceService) ByOperation(ctx context.Context, operation string) ([]entity.PerformanceMetric, error) {
	if operation == "" {
		return nil, errors.New("operation is required")
	}
	return s.repo.ByOperation(ctx, operation, defaultMetricLimit)
}

func (s *PerformanceService) ByType(ctx context.Context, t entity.MetricType) ([]entity.PerformanceMetric, error) {
	if t == "" {
		return nil, errors.New("metric type is required")
	}
	return s.repo.ByType(ctx, t, defaultMetricLimit)
}

func (s *PerformanceService) ByTimeRange(ctx context.Context, from, to time.Time) ([]entity.PerformanceMetric, error) {
	if from.After(to) {
		return nil, errors.New("start date must be before end date")
	}
	return s.repo.Between(ctx, from, to, "")
}

// AverageDuration mean duration in ms, optionally restricted to [from, to]
func (s *PerformanceService) AverageDuration(ctx context.Context, operation string, from, to *time.Time) (float64, error) {
	if operation == "" {
		return 0, errors.New("operation is required")
	}
	return s.repo.AverageDuration(ctx, operation, from, to)
}

func (s *PerformanceService) SlowestOperations(ctx context.Context, limit int) ([]repository.OperationAverage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	return s.repo.SlowestOperations(ctx, limit)
}

// ErrorRate percentage of samples with status >= 400
func (s *PerformanceService) ErrorRate(ctx context.Context, operation string) (float64, error) {
	if operation == "" {
		return 0, errors.New("operation is required")
	}
	total, failed, err := s.repo.CountByOperation(ctx, operation)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failed) / float64(total) * 100, nil
}
