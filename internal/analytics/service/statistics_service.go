package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"github.com/google/uuid"
)

// StatisticsService stored aggregates
type StatisticsService struct {
	repo *repository.StatisticRepository
}

func NewStatisticsService(repo *repository.StatisticRepository) *StatisticsService {
	return &StatisticsService{repo: repo}
}

// CreateStatisticInput fields of a new statistic
type CreateStatisticInput struct {
	Type        entity.StatisticType
	Name        string
	TimePeriod  entity.TimePeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Data        interface{}
	Category    string
	Description string
	Dimensions  map[string]interface{}
}

func (s *StatisticsService) Create(ctx context.Context, in CreateStatisticInput) (*entity.Statistic, error) {
	if in.Type == "" || in.Name == "" || in.TimePeriod == "" {
		return nil, errors.New("type, name and time period are required")
	}
	if in.PeriodStart.After(in.PeriodEnd) {
		return nil, errors.New("period start must be before period end")
	}
	data := entity.MarshalJSONValue(in.Data)
	if data == nil {
		return nil, errors.New("statistic data is required")
	}
	stat := &entity.Statistic{
		ID:          uuid.New().String(),
		Type:        in.Type,
		TimePeriod:  in.TimePeriod,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Data:        data,
	}
	if in.Dimensions != nil {
		stat.Dimensions = entity.MarshalJSONValue(in.Dimensions)
	}
	if err := s.repo.Create(ctx, stat); err != nil {
		return nil, fmt.Errorf("create statistic: %w", err)
	}
	return stat, nil
}

func (s *StatisticsService) ListByType(ctx context.Context, t entity.StatisticType, limit int) ([]entity.Statistic, error) {
	return s.repo.ByType(ctx, t, clampLimit(limit))
}

func (s *StatisticsService) ListByTimePeriod(ctx context.Context, p entity.TimePeriod, limit int) ([]entity.Statistic, error) {
	return s.repo.ByTimePeriod(ctx, p, clampLimit(limit))
}

func (s *StatisticsService) Latest(ctx context.Context, limit int) ([]entity.Statistic, error) {
	return s.repo.Latest(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 200 {
		return 200
	}
	return limit
}
