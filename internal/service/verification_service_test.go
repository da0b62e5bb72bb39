package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/shebagreen/cleanup-backend/internal/detection"
	"github.com/shebagreen/cleanup-backend/internal/hedera"
	"github.com/shebagreen/cleanup-backend/internal/logger"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

func init() {
	logger.Init("error")
	logger.Log.SetOutput(io.Discard)
	logger.Log.SetLevel(logrus.PanicLevel)
}

type mockReportStore struct {
	mock.Mock
}

func (m *mockReportStore) Create(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *mockReportStore) GetByReportID(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *mockReportStore) Finalize(ctx context.Context, reportID uuid.UUID, status string, afterImagePath string, verificationResult types.JSONText, tokenTxID, hcsMessageID *string) error {
	args := m.Called(ctx, reportID, status, afterImagePath, verificationResult, tokenTxID, hcsMessageID)
	return args.Error(0)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Predict(ctx context.Context, imagePath string) (*detection.PredictionResult, error) {
	args := m.Called(ctx, imagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*detection.PredictionResult), args.Error(1)
}

func (m *mockDetector) Verify(ctx context.Context, imagePath, prompt string) (*detection.VerificationResult, error) {
	args := m.Called(ctx, imagePath, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*detection.VerificationResult), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) MintAndTransfer(ctx context.Context, toAccountID string, amount int64) (*hedera.MintTransferResult, error) {
	args := m.Called(ctx, toAccountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.MintTransferResult), args.Error(1)
}

func (m *mockLedger) PublishMessage(ctx context.Context, payload interface{}) (*hedera.PublishResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.PublishResult), args.Error(1)
}

type mockSettlementStore struct {
	mock.Mock
}

func (m *mockSettlementStore) Create(ctx context.Context, intent *models.SettlementIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *mockSettlementStore) MarkMinted(ctx context.Context, id uuid.UUID, tokenTxID string) error {
	args := m.Called(ctx, id, tokenTxID)
	return args.Error(0)
}

func (m *mockSettlementStore) MarkCompleted(ctx context.Context, id uuid.UUID, hcsTxID string) error {
	args := m.Called(ctx, id, hcsTxID)
	return args.Error(0)
}

type mockImageStore struct {
	mock.Mock
}

func (m *mockImageStore) Save(ctx context.Context, prefix string, data []byte) (string, error) {
	args := m.Called(ctx, prefix, data)
	return args.String(0), args.Error(1)
}

func (m *mockImageStore) RootPath() string {
	args := m.Called()
	return args.String(0)
}

type verificationFixture struct {
	reports     *mockReportStore
	users       *mockUserStore
	detector    *mockDetector
	ledger      *mockLedger
	settlements *mockSettlementStore
	images      *mockImageStore
	svc         *VerificationService
}

func newVerificationFixture() *verificationFixture {
	f := &verificationFixture{
		reports:     new(mockReportStore),
		users:       new(mockUserStore),
		detector:    new(mockDetector),
		ledger:      new(mockLedger),
		settlements: new(mockSettlementStore),
		images:      new(mockImageStore),
	}
	f.svc = NewVerificationService(f.reports, f.users, f.detector, f.ledger, f.settlements, f.images, 1)
	return f
}

func awaitingReport(reportID uuid.UUID, userID string) *models.Report {
	return &models.Report{
		ReportID:        reportID,
		UserID:          userID,
		BeforeImagePath: userID + "/" + reportID.String() + "/before.jpg",
		DetectionResult: types.JSONText(`{"boxes":[{}]}`),
		RandomPrompt:    "покажите чистую площадку с жёлтым ведром",
		Status:          models.ReportStatusAwaitingClean,
	}
}

func accountID(s string) *string { return &s }

func TestVerificationService_VerifyCleanup_Success(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/"+reportID.String()+"/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(&detection.VerificationResult{Verified: true}, nil)
	f.settlements.On("Create", ctx, mock.AnythingOfType("*models.SettlementIntent")).Return(nil)
	f.ledger.On("MintAndTransfer", ctx, "0.0.1234", int64(1)).
		Return(&hedera.MintTransferResult{TokenID: "0.0.5555", TxID: "0.0.99@1.2"}, nil)
	f.settlements.On("MarkMinted", ctx, mock.Anything, "0.0.99@1.2").Return(nil)
	f.ledger.On("PublishMessage", ctx, mock.Anything).
		Return(&hedera.PublishResult{TxID: "0.0.99@3.4", ConsensusTimestamp: "1700000000.000000001"}, nil)
	f.reports.On("Finalize", ctx, reportID, models.ReportStatusVerified, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.settlements.On("MarkCompleted", ctx, mock.Anything, "0.0.99@3.4").Return(nil)

	resp, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, "0.0.99@1.2", *resp.TokenTxID)
	assert.Equal(t, "0.0.99@3.4", *resp.HcsMessageID)
	f.settlements.AssertExpectations(t)
	f.reports.AssertExpectations(t)
}

func TestVerificationService_VerifyCleanup_Rejected(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(&detection.VerificationResult{Verified: false, Reason: "мусор всё ещё на месте"}, nil)
	f.reports.On("Finalize", ctx, reportID, models.ReportStatusRejected, "alice/after.jpg", mock.Anything,
		(*string)(nil), (*string)(nil)).Return(nil)

	resp, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Equal(t, "мусор всё ещё на месте", resp.Reason)
	// Отклонение не трогает ledger и не создаёт интентов.
	f.ledger.AssertNotCalled(t, "MintAndTransfer", mock.Anything, mock.Anything, mock.Anything)
	f.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_ReportNotFound(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	f.reports.On("GetByReportID", ctx, reportID).Return(nil, repository.ErrReportNotFound)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.ErrorIs(t, err, apperror.ErrReportNotFound)
	assert.True(t, apperror.IsNotFound(err))
}

func TestVerificationService_VerifyCleanup_OwnershipMismatch(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	f.reports.On("GetByReportID", ctx, reportID).Return(awaitingReport(reportID, "alice"), nil)

	_, err := f.svc.VerifyCleanup(ctx, "mallory", reportID, []byte("after"))

	assert.ErrorIs(t, err, apperror.ErrOwnershipMismatch)
	assert.True(t, apperror.IsUnprocessable(err))
	// Чужой отчёт отклоняется до обращения к детекции и хранилищу.
	f.detector.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	f.images.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_NoLedgerAccount(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	f.reports.On("GetByReportID", ctx, reportID).Return(awaitingReport(reportID, "alice"), nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{UserID: "alice"}, nil)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.ErrorIs(t, err, apperror.ErrNoLedgerAccount)
	f.detector.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_DetectionDown(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(nil, apperror.ErrDetectionUnavailable)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.True(t, apperror.IsUnavailable(err))
	// Сбой детекции не оставляет следов: ни финализации, ни интентов.
	f.reports.AssertNotCalled(t, "Finalize",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "MintAndTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_PublishFailureKeepsTransfer(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")
	publishErr := apperror.New(apperror.ErrCodeLedgerOperation, "не удалось опубликовать сообщение")

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(&detection.VerificationResult{Verified: true}, nil)
	f.settlements.On("Create", ctx, mock.AnythingOfType("*models.SettlementIntent")).Return(nil)
	f.ledger.On("MintAndTransfer", ctx, "0.0.1234", int64(1)).
		Return(&hedera.MintTransferResult{TokenID: "0.0.5555", TxID: "0.0.99@1.2"}, nil)
	f.settlements.On("MarkMinted", ctx, mock.Anything, "0.0.99@1.2").Return(nil)
	f.ledger.On("PublishMessage", ctx, mock.Anything).Return(nil, publishErr)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.ErrorIs(t, err, publishErr)
	// Перевод не откатывается: повторного MintAndTransfer нет, отчёт не
	// финализируется, интент остаётся в MINTED для reconciler'а.
	f.ledger.AssertNumberOfCalls(t, "MintAndTransfer", 1)
	f.ledger.AssertNumberOfCalls(t, "PublishMessage", 1)
	f.reports.AssertNotCalled(t, "Finalize",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.settlements.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_AlreadyFinalizedReturnsStoredOutcome(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	tokenTx := "0.0.99@1.2"
	hcsTx := "0.0.99@3.4"
	report := awaitingReport(reportID, "alice")
	report.Status = models.ReportStatusVerified
	report.TokenTxID = &tokenTx
	report.HcsMessageID = &hcsTx

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)

	resp, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, tokenTx, *resp.TokenTxID)
	// Повторная верификация не трогает ни детекцию, ни ledger.
	f.detector.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "MintAndTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_VerifyCleanup_ConcurrentFinalizeConflict(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")

	tokenTx := "0.0.88@5.6"
	hcsTx := "0.0.88@7.8"
	finalized := awaitingReport(reportID, "alice")
	finalized.Status = models.ReportStatusVerified
	finalized.TokenTxID = &tokenTx
	finalized.HcsMessageID = &hcsTx

	// Первый fetch видит AWAITING_CLEAN, но конкурентный вызов успевает
	// финализировать раньше: Finalize отвечает конфликтом, повторный fetch
	// возвращает итоговое состояние.
	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil).Once()
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(&detection.VerificationResult{Verified: false, Reason: "мусор на месте"}, nil)
	f.reports.On("Finalize", ctx, reportID, models.ReportStatusRejected, mock.Anything, mock.Anything,
		(*string)(nil), (*string)(nil)).Return(repository.ErrReportFinalized)
	f.reports.On("GetByReportID", ctx, reportID).Return(finalized, nil).Once()

	resp, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, tokenTx, *resp.TokenTxID)
}

func TestVerificationService_VerifyCleanup_ChallengeUsesStoredPrompt(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")
	report.RandomPrompt = "сфотографируйте место с газетой в кадре"

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, "сфотографируйте место с газетой в кадре").
		Return(&detection.VerificationResult{Verified: false, Reason: "нет газеты"}, nil)
	f.reports.On("Finalize", ctx, reportID, models.ReportStatusRejected, mock.Anything, mock.Anything,
		(*string)(nil), (*string)(nil)).Return(nil)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.NoError(t, err)
	f.detector.AssertExpectations(t)
}

func TestVerificationService_VerifyCleanup_MintFailureLeavesIntentPending(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	reportID := uuid.New()
	report := awaitingReport(reportID, "alice")
	mintErr := errors.New("INSUFFICIENT_PAYER_BALANCE")

	f.reports.On("GetByReportID", ctx, reportID).Return(report, nil)
	f.users.On("GetByUserID", ctx, "alice").Return(&models.User{
		UserID:          "alice",
		HederaAccountID: accountID("0.0.1234"),
	}, nil)
	f.images.On("Save", ctx, mock.Anything, mock.Anything).Return("alice/after.jpg", nil)
	f.images.On("RootPath").Return("/uploads")
	f.detector.On("Verify", ctx, mock.Anything, report.RandomPrompt).
		Return(&detection.VerificationResult{Verified: true}, nil)
	f.settlements.On("Create", ctx, mock.AnythingOfType("*models.SettlementIntent")).Return(nil)
	f.ledger.On("MintAndTransfer", ctx, "0.0.1234", int64(1)).Return(nil, mintErr)

	_, err := f.svc.VerifyCleanup(ctx, "alice", reportID, []byte("after"))

	assert.ErrorIs(t, err, mintErr)
	f.reports.AssertNotCalled(t, "Finalize",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.settlements.AssertNotCalled(t, "MarkMinted", mock.Anything, mock.Anything, mock.Anything)
}
