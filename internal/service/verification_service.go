package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sirupsen/logrus"

	"github.com/shebagreen/cleanup-backend/internal/detection"
	"github.com/shebagreen/cleanup-backend/internal/hedera"
	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// VerificationReportStore — чтение отчёта и его атомарная финализация.
type VerificationReportStore interface {
	GetByReportID(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	Finalize(ctx context.Context, reportID uuid.UUID, status string, afterImagePath string, verificationResult types.JSONText, tokenTxID, hcsMessageID *string) error
}

// VerificationUserStore — поиск владельца отчёта.
type VerificationUserStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
}

// Verifier — вызов детекции для снимка "после" с исходным промптом.
type Verifier interface {
	Verify(ctx context.Context, imagePath, prompt string) (*detection.VerificationResult, error)
}

// Ledger — операции расчёта: перевод награды и публикация аудит-записи.
type Ledger interface {
	MintAndTransfer(ctx context.Context, toAccountID string, amount int64) (*hedera.MintTransferResult, error)
	PublishMessage(ctx context.Context, payload interface{}) (*hedera.PublishResult, error)
}

// SettlementStore — durable-интенты расчёта (outbox mint → publish).
type SettlementStore interface {
	Create(ctx context.Context, intent *models.SettlementIntent) error
	MarkMinted(ctx context.Context, id uuid.UUID, tokenTxID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, hcsTxID string) error
}

// VerificationResponse — итог верификации, зеркалит сохранённые поля отчёта.
type VerificationResponse struct {
	Verified     bool      `json:"verified"`
	Reason       string    `json:"reason,omitempty"`
	ReportID     uuid.UUID `json:"report_id"`
	TokenTxID    *string   `json:"token_tx_id,omitempty"`
	HcsMessageID *string   `json:"hcs_message_id,omitempty"`
}

// VerificationService — оркестратор перехода AWAITING_CLEAN → VERIFIED/REJECTED.
//
// Порядок шагов значим: снимок "после" сохраняется и детекция вызывается до
// любых мутаций ledger, поэтому сбой детекции не оставляет частичного
// состояния. Если же перевод награды прошёл, а публикация в consensus-лог
// упала, перевод не откатывается и публикация не ретраится inline — ошибка
// уходит вызывающему, а застрявший интент добирает фоновый reconciler.
type VerificationService struct {
	reports      VerificationReportStore
	users        VerificationUserStore
	detector     Verifier
	ledger       Ledger
	settlements  SettlementStore
	images       ImageStore
	rewardAmount int64
}

func NewVerificationService(
	reports VerificationReportStore,
	users VerificationUserStore,
	detector Verifier,
	ledger Ledger,
	settlements SettlementStore,
	images ImageStore,
	rewardAmount int64,
) *VerificationService {
	if rewardAmount <= 0 {
		rewardAmount = 1
	}
	return &VerificationService{
		reports:      reports,
		users:        users,
		detector:     detector,
		ledger:       ledger,
		settlements:  settlements,
		images:       images,
		rewardAmount: rewardAmount,
	}
}

// VerifyCleanup проверяет уборку по снимку "после". Промпт берётся из отчёта,
// выданного при создании, а не от клиента: challenge-response связка между
// созданием и верификацией не должна подделываться.
func (s *VerificationService) VerifyCleanup(ctx context.Context, userID string, reportID uuid.UUID, afterImage []byte) (*VerificationResponse, error) {
	// Предусловия проверяются по порядку, каждое — отдельный режим отказа.
	report, err := s.reports.GetByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, apperror.ErrReportNotFound
		}
		return nil, err
	}

	if report.UserID != userID {
		return nil, apperror.ErrOwnershipMismatch
	}

	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	if user.HederaAccountID == nil || *user.HederaAccountID == "" {
		return nil, apperror.ErrNoLedgerAccount
	}

	// Отчёт уже финализирован: возвращаем сохранённый исход, не применяя
	// верификацию повторно.
	if report.Status != models.ReportStatusAwaitingClean {
		return s.persistedOutcome(report), nil
	}

	prefix := filepath.Join(userID, reportID.String())
	afterImagePath, err := s.images.Save(ctx, prefix, afterImage)
	if err != nil {
		return nil, err
	}

	result, err := s.detector.Verify(ctx, filepath.Join(s.images.RootPath(), afterImagePath), report.RandomPrompt)
	if err != nil {
		// Детекция недоступна: отчёт не тронут, ledger не тронут.
		return nil, err
	}

	rawResult, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("verify cleanup: serialize result: %w", err)
	}
	verificationJSON := types.JSONText(rawResult)

	if !result.Verified {
		logger.Log.WithFields(logrus.Fields{
			"report_id": reportID,
			"reason":    result.Reason,
		}).Info("Верификация уборки отклонена")

		if err := s.reports.Finalize(ctx, reportID, models.ReportStatusRejected, afterImagePath, verificationJSON, nil, nil); err != nil {
			if errors.Is(err, repository.ErrReportFinalized) {
				return s.refetchOutcome(ctx, reportID)
			}
			return nil, err
		}

		return &VerificationResponse{
			Verified: false,
			Reason:   result.Reason,
			ReportID: reportID,
		}, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"report_id": reportID,
		"user_id":   userID,
	}).Info("Уборка подтверждена, начисляем награду")

	// Durable-интент пишется до обращения к ledger: если процесс упадёт
	// между mint и publish, reconciler доберёт шаг публикации.
	intent := &models.SettlementIntent{
		ID:                 uuid.New(),
		ReportID:           reportID,
		UserID:             userID,
		AccountID:          *user.HederaAccountID,
		Amount:             s.rewardAmount,
		AfterImagePath:     afterImagePath,
		VerificationResult: verificationJSON,
		State:              models.SettlementStatePending,
	}
	if err := s.settlements.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("verify cleanup: create settlement intent: %w", err)
	}

	mint, err := s.ledger.MintAndTransfer(ctx, *user.HederaAccountID, s.rewardAmount)
	if err != nil {
		return nil, err
	}

	if err := s.settlements.MarkMinted(ctx, intent.ID, mint.TxID); err != nil {
		logger.Log.WithError(err).WithField("intent_id", intent.ID).Warn("Не удалось отметить интент как MINTED")
	}

	publish, err := s.ledger.PublishMessage(ctx, verificationEvent(reportID, userID, mint.TxID))
	if err != nil {
		// Токены уже переведены. Перевод не откатывается, publish не
		// ретраится здесь: ошибка уходит вызывающему как есть.
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"report_id":   reportID,
			"token_tx_id": mint.TxID,
		}).Error("Публикация аудит-записи не удалась после перевода награды")
		return nil, err
	}

	if err := s.reports.Finalize(ctx, reportID, models.ReportStatusVerified, afterImagePath, verificationJSON, &mint.TxID, &publish.TxID); err != nil {
		if errors.Is(err, repository.ErrReportFinalized) {
			return s.refetchOutcome(ctx, reportID)
		}
		return nil, err
	}

	if err := s.settlements.MarkCompleted(ctx, intent.ID, publish.TxID); err != nil {
		logger.Log.WithError(err).WithField("intent_id", intent.ID).Warn("Не удалось отметить интент как COMPLETED")
	}

	return &VerificationResponse{
		Verified:     true,
		ReportID:     reportID,
		TokenTxID:    &mint.TxID,
		HcsMessageID: &publish.TxID,
	}, nil
}

// persistedOutcome восстанавливает ответ из финализированного отчёта.
func (s *VerificationService) persistedOutcome(report *models.Report) *VerificationResponse {
	resp := &VerificationResponse{
		Verified:     report.Status == models.ReportStatusVerified,
		ReportID:     report.ReportID,
		TokenTxID:    report.TokenTxID,
		HcsMessageID: report.HcsMessageID,
	}

	if !resp.Verified && report.VerificationResult != nil {
		var stored struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(*report.VerificationResult, &stored); err == nil {
			resp.Reason = stored.Reason
		}
	}

	return resp
}

func (s *VerificationService) refetchOutcome(ctx context.Context, reportID uuid.UUID) (*VerificationResponse, error) {
	report, err := s.reports.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.persistedOutcome(report), nil
}

// verificationEvent собирает payload аудит-записи об успешной верификации.
func verificationEvent(reportID uuid.UUID, userID, tokenTxID string) map[string]interface{} {
	return map[string]interface{}{
		"type":              models.HcsEventCleanupVerification,
		"reportId":          reportID.String(),
		"userId":            userID,
		"tokenTransferTxId": tokenTxID,
		"verified":          true,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	}
}
