package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/repository/common"
)

var (
	ErrReportNotFound = errors.New("report not found")
	// ErrReportFinalized возвращается условным апдейтом, если отчёт уже
	// переведён в терминальный статус конкурентным вызовом.
	ErrReportFinalized = errors.New("report already finalized")
)

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO reports (report_id, user_id, before_image_path, detection_result, random_prompt, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, report.ReportID, report.UserID, report.BeforeImagePath, report.DetectionResult, report.RandomPrompt, report.Status).
		Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
}

func (r *ReportRepository) GetByReportID(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	return common.GetByField[models.Report](ctx, r.db, "reports", "report_id", reportID, ErrReportNotFound)
}

// Finalize атомарно переводит отчёт из AWAITING_CLEAN в терминальный статус.
// Если отчёт уже финализирован конкурентным вызовом, возвращает ErrReportFinalized:
// повторная верификация никогда не применяется молча. Условный апдейт и чтение
// причины при нуле строк идут в одной транзакции, чтобы причина отказа
// соответствовала состоянию, победившему апдейт.
func (r *ReportRepository) Finalize(ctx context.Context, reportID uuid.UUID, status string, afterImagePath string, verificationResult types.JSONText, tokenTxID, hcsMessageID *string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reports
			SET status = $2,
			    after_image_path = $3,
			    verification_result = $4,
			    token_tx_id = $5,
			    hcs_message_id = $6,
			    updated_at = NOW()
			WHERE report_id = $1 AND status = $7
		`, reportID, status, afterImagePath, verificationResult, tokenTxID, hcsMessageID, models.ReportStatusAwaitingClean)
		if err != nil {
			return fmt.Errorf("finalize report %s: %w", reportID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("finalize report %s: rows affected: %w", reportID, err)
		}
		if affected > 0 {
			return nil
		}

		// Ноль строк: либо отчёта нет, либо он уже в терминальном статусе.
		var current string
		if err := tx.GetContext(ctx, &current, `SELECT status FROM reports WHERE report_id = $1`, reportID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReportNotFound
			}
			return fmt.Errorf("finalize report %s: read status: %w", reportID, err)
		}
		return ErrReportFinalized
	})
}

// ListVerified возвращает верифицированные отчёты для публичной ленты.
// sortByTokens=true сортирует сначала награждённые, затем по дате.
func (r *ReportRepository) ListVerified(ctx context.Context, limit, offset int, sortByTokens bool) ([]models.Report, error) {
	order := "created_at DESC"
	if sortByTokens {
		order = "(token_tx_id IS NOT NULL) DESC, created_at DESC"
	}

	var reports []models.Report
	query := fmt.Sprintf(`
		SELECT * FROM reports WHERE status = $1 ORDER BY %s LIMIT $2 OFFSET $3
	`, order)
	err := r.db.SelectContext(ctx, &reports, query, models.ReportStatusVerified, limit, offset)
	return reports, err
}

func (r *ReportRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE status = $1`, status)
	return count, err
}

func (r *ReportRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports`)
	return count, err
}

func (r *ReportRepository) CountRewarded(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE token_tx_id IS NOT NULL`)
	return count, err
}

func (r *ReportRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE created_at >= $1`, since)
	return count, err
}

func (r *ReportRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE user_id = $1`, userID)
	return count, err
}

func (r *ReportRepository) CountByUserAndStatus(ctx context.Context, userID, status string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE user_id = $1 AND status = $2`, userID, status)
	return count, err
}

func (r *ReportRepository) CountRewardedByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reports WHERE user_id = $1 AND token_tx_id IS NOT NULL`, userID)
	return count, err
}

// AggregateByUser группирует верифицированные отчёты по пользователям.
// score = tokens + 0.5 * events, как в публичном лидерборде.
func (r *ReportRepository) AggregateByUser(ctx context.Context, since *time.Time, limit int) ([]models.UserReportAggregate, error) {
	query := `
		SELECT user_id,
		       COUNT(*) AS events,
		       COUNT(token_tx_id) AS tokens,
		       COUNT(token_tx_id) + 0.5 * COUNT(*) AS score
		FROM reports
		WHERE status = $1
	`
	args := []interface{}{models.ReportStatusVerified}

	if since != nil {
		query += ` AND created_at >= $2`
		args = append(args, *since)
	}

	query += fmt.Sprintf(` GROUP BY user_id ORDER BY score DESC, events DESC LIMIT %d`, limit)

	var aggregates []models.UserReportAggregate
	err := r.db.SelectContext(ctx, &aggregates, query, args...)
	return aggregates, err
}

func (r *ReportRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]models.ReportSummary, error) {
	var summaries []models.ReportSummary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT report_id, status, created_at
		FROM reports WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	return summaries, err
}

// CountUsersWithMoreRewards считает пользователей, заработавших больше токенов,
// чем указано: используется для вычисления места в рейтинге.
func (r *ReportRepository) CountUsersWithMoreRewards(ctx context.Context, tokens int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM (
			SELECT user_id FROM reports
			WHERE token_tx_id IS NOT NULL
			GROUP BY user_id
			HAVING COUNT(token_tx_id) > $1
		) ranked
	`, tokens)
	return count, err
}
