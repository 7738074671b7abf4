package service

import (
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"go.uber.org/zap"
)

// Services analytics service set
type Services struct {
	Activity    *ActivityService
	Performance *PerformanceService
	Statistics  *StatisticsService
	Generator   *Generator
}

func NewServices(repos *repository.Repositories, tasks TaskCounter, logger *zap.Logger) *Services {
	stats := NewStatisticsService(repos.Statistic)
	return &Services{
		Activity:    NewActivityService(repos.Activity, logger),
		Performance: NewPerformanceService(repos.Metric, logger),
		Statistics:  stats,
		Generator:   NewGenerator(repos, stats, tasks, logger),
	}
}

// Wait drains pending async writes
func (s *Services) Wait() {
	s.Activity.Wait()
	s.Performance.Wait()
}
