package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ActivityService audit trail
type ActivityService struct {
	repo   *repository.ActivityRepository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewActivityService(repo *repository.ActivityRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Log stores an entry, filling id, timestamp and a default description
func (s *ActivityService) Log(ctx context.Context, a *entity.ActivityLog) error {
	if a.ActivityType == "" {
		return errors.New("activity type is required")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Description == "" {
		a.Description = strings.TrimSpace(string(a.ActivityType) + " " + string(a.EntityType))
	}
	if len(a.Description) > 500 {
		a.Description = a.Description[:500]
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// LogAsync stores the entry in the background; failures are only logged
func (s *ActivityService) LogAsync(a *entity.ActivityLog) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Log(ctx, a); err != nil {
			s.logger.Warn("activity log dropped",
				zap.String("activity_type", string(a.ActivityType)),
				zap.String("entity_id", a.EntityID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until pending async writes finish
func (s *ActivityService) Wait() {
	s.wg.Wait()
}

func (s *ActivityService) List(ctx context.Context, f repository.ActivityFilter, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, 0, errors.New("start date must be before end date")
	}
	return s.repo.List(ctx, f, page, pageSize)
}

// Recent newest entries
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]entity.ActivityLog, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	return s.repo.All(ctx, repository.ActivityFilter{}, limit)
}

// DeleteOlderThan removes entries older than days
func (s *ActivityService) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("days must be greater than 0")
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete activity logs: %w", err)
	}
	return n, nil
}

var activityExportHeaders = []string{
	"Time", "Activity", "Entity Type", "Entity ID", "User ID",
	"Description", "Status", "IP Address", "Details",
}

const maxExportRows = 50000

// ExportXLSX writes matching entries to a workbook
func (s *ActivityService) ExportXLSX(ctx context.Context, f repository.ActivityFilter) (*excelize.File, string, error) {
	logs, err := s.repo.All(ctx, f, maxExportRows)
	if err != nil {
		return nil, "", fmt.Errorf("list activity logs: %w", err)
	}

	book := excelize.NewFile()
	sheet := "Activities"
	book.SetSheetName("Sheet1", sheet)

	headerStyle, _ := book.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range activityExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		book.SetCellValue(sheet, cell, h)
		book.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, l := range logs {
		row := i + 2
		book.SetCellValue(sheet, fmt.Sprintf("A%d", row), l.CreatedAt.Format(time.RFC3339))
		book.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(l.ActivityType))
		book.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(l.EntityType))
		book.SetCellValue(sheet, fmt.Sprintf("D%d", row), l.EntityID)
		book.SetCellValue(sheet, fmt.Sprintf("E%d", row), l.UserID)
		book.SetCellValue(sheet, fmt.Sprintf("F%d", row), l.Description)
		if l.StatusCode != nil {
			book.SetCellValue(sheet, fmt.Sprintf("G%d", row), *l.StatusCode)
		}
		book.SetCellValue(sheet, fmt.Sprintf("H%d", row), l.IPAddress)
		if len(l.Details) > 0 {
			book.SetCellValue(sheet, fmt.Sprintf("I%d", row), string(l.Details))
		}
	}

	widths := []float64{22, 14, 12, 38, 38, 50, 8, 16, 60}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		book.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("activities_%s.xlsx", time.Now().Format("20060102_150405"))
	return book, filename, nil
}
