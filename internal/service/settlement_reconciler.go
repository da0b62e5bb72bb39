package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sirupsen/logrus"

	"github.com/shebagreen/cleanup-backend/internal/hedera"
	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// ReconcilerSettlementStore — выборка застрявших интентов и их завершение.
type ReconcilerSettlementStore interface {
	ListStuckMinted(ctx context.Context, olderThan time.Time, limit int) ([]models.SettlementIntent, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, hcsTxID string) error
}

// ReconcilerReportStore — финализация отчёта при добирании интента.
type ReconcilerReportStore interface {
	Finalize(ctx context.Context, reportID uuid.UUID, status string, afterImagePath string, verificationResult types.JSONText, tokenTxID, hcsMessageID *string) error
}

// ReconcilerLedger — повторная публикация аудит-записи.
type ReconcilerLedger interface {
	PublishMessage(ctx context.Context, payload interface{}) (*hedera.PublishResult, error)
}

// SettlementReconciler добирает интенты, застрявшие в MINTED: токены уже
// переведены, но публикация в consensus-лог не состоялась. Каждый тик он
// повторяет publish и финализирует отчёт. Grace-период отсекает интенты,
// которые ещё может завершить inline-путь верификации.
type SettlementReconciler struct {
	settlements ReconcilerSettlementStore
	reports     ReconcilerReportStore
	ledger      ReconcilerLedger
	interval    time.Duration
	grace       time.Duration
}

func NewSettlementReconciler(
	settlements ReconcilerSettlementStore,
	reports ReconcilerReportStore,
	ledger ReconcilerLedger,
	interval, grace time.Duration,
) *SettlementReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &SettlementReconciler{
		settlements: settlements,
		reports:     reports,
		ledger:      ledger,
		interval:    interval,
		grace:       grace,
	}
}

const reconcileBatchSize = 20

// Run крутит цикл реконсиляции до отмены контекста.
func (r *SettlementReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", r.interval).Info("Реконсилятор расчётов запущен")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Реконсилятор расчётов остановлен")
			return
		case <-ticker.C:
			r.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce обрабатывает один батч застрявших интентов. Ошибки отдельных
// интентов логируются и не прерывают батч: следующий тик повторит попытку.
func (r *SettlementReconciler) ReconcileOnce(ctx context.Context) {
	olderThan := time.Now().UTC().Add(-r.grace)

	intents, err := r.settlements.ListStuckMinted(ctx, olderThan, reconcileBatchSize)
	if err != nil {
		logger.Log.WithError(err).Error("Не удалось выбрать застрявшие интенты")
		return
	}

	for _, intent := range intents {
		if err := r.reconcileIntent(ctx, intent); err != nil {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"intent_id": intent.ID,
				"report_id": intent.ReportID,
				"attempts":  intent.Attempts,
			}).Warn("Интент не удалось добрать, повторим на следующем тике")
		}
	}
}

func (r *SettlementReconciler) reconcileIntent(ctx context.Context, intent models.SettlementIntent) error {
	if err := r.settlements.IncrementAttempts(ctx, intent.ID); err != nil {
		return err
	}

	if intent.TokenTxID == nil {
		// MINTED без tx перевода — повреждённая запись, руками разберутся.
		return errors.New("интент в MINTED без token_tx_id")
	}

	publish, err := r.ledger.PublishMessage(ctx, verificationEvent(intent.ReportID, intent.UserID, *intent.TokenTxID))
	if err != nil {
		return err
	}

	err = r.reports.Finalize(ctx, intent.ReportID, models.ReportStatusVerified,
		intent.AfterImagePath, intent.VerificationResult, intent.TokenTxID, &publish.TxID)
	if err != nil && !errors.Is(err, repository.ErrReportFinalized) {
		// Финализированный конкурентно отчёт — штатный исход, остальное — нет.
		return err
	}

	if err := r.settlements.MarkCompleted(ctx, intent.ID, publish.TxID); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"report_id": intent.ReportID,
		"hcs_tx_id": publish.TxID,
	}).Info("Застрявший интент добран")
	return nil
}
