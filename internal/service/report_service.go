package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"github.com/shebagreen/cleanup-backend/internal/detection"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
	"github.com/shebagreen/cleanup-backend/internal/validation"
)

// ReportStore — запись и чтение отчётов при создании.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByReportID(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
}

// Predictor — вызов детекции для снимка "до".
type Predictor interface {
	Predict(ctx context.Context, imagePath string) (*detection.PredictionResult, error)
}

// ImageStore — файловое хранилище снимков.
type ImageStore interface {
	Save(ctx context.Context, prefix string, data []byte) (string, error)
	RootPath() string
}

// ReportService — оркестратор создания отчёта: сохранить снимок "до",
// получить результат детекции и промпт, записать отчёт в AWAITING_CLEAN.
// Компенсаций нет: до ledger дело ещё не дошло, сбой на любом шаге
// оставляет только безобидный файл на диске.
type ReportService struct {
	reports  ReportStore
	detector Predictor
	images   ImageStore
}

func NewReportService(reports ReportStore, detector Predictor, images ImageStore) *ReportService {
	return &ReportService{
		reports:  reports,
		detector: detector,
		images:   images,
	}
}

// CreateReport создаёт новый отчёт об уборке по снимку "до".
func (s *ReportService) CreateReport(ctx context.Context, userID string, beforeImage []byte) (*models.Report, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	reportID := uuid.New()
	prefix := filepath.Join(userID, reportID.String())

	beforeImagePath, err := s.images.Save(ctx, prefix, beforeImage)
	if err != nil {
		return nil, err
	}

	prediction, err := s.detector.Predict(ctx, filepath.Join(s.images.RootPath(), beforeImagePath))
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReportID:        reportID,
		UserID:          userID,
		BeforeImagePath: beforeImagePath,
		DetectionResult: types.JSONText(prediction.DetectionResult),
		RandomPrompt:    prediction.RandomPrompt,
		Status:          models.ReportStatusAwaitingClean,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	return report, nil
}

// GetReportByID возвращает отчёт по его идентификатору.
func (s *ReportService) GetReportByID(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	report, err := s.reports.GetByReportID(ctx, reportID)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, apperror.ErrReportNotFound
	}
	return report, err
}
