package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shebagreen/cleanup-backend/internal/models"
)

var ErrIntentNotFound = errors.New("settlement intent not found")

// SettlementRepository хранит durable-интенты расчёта (outbox для связки
// mint → publish). Интент пишется до обращения к ledger, поэтому после
// падения процесса застрявший шаг публикации можно добрать.
type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, intent *models.SettlementIntent) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO settlement_intents (id, report_id, user_id, account_id, amount, after_image_path, verification_result, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, intent.ID, intent.ReportID, intent.UserID, intent.AccountID, intent.Amount,
		intent.AfterImagePath, intent.VerificationResult, intent.State).
		Scan(&intent.CreatedAt, &intent.UpdatedAt)
}

func (r *SettlementRepository) MarkMinted(ctx context.Context, id uuid.UUID, tokenTxID string) error {
	return r.transition(ctx, id, models.SettlementStatePending, models.SettlementStateMinted,
		`token_tx_id = $3`, tokenTxID)
}

func (r *SettlementRepository) MarkCompleted(ctx context.Context, id uuid.UUID, hcsTxID string) error {
	return r.transition(ctx, id, models.SettlementStateMinted, models.SettlementStateCompleted,
		`hcs_tx_id = $3`, hcsTxID)
}

func (r *SettlementRepository) transition(ctx context.Context, id uuid.UUID, from, to, setClause string, arg interface{}) error {
	query := fmt.Sprintf(`
		UPDATE settlement_intents
		SET state = $2, %s, updated_at = NOW()
		WHERE id = $1 AND state = $4
	`, setClause)

	res, err := r.db.ExecContext(ctx, query, id, to, arg, from)
	if err != nil {
		return fmt.Errorf("transition intent %s to %s: %w", id, to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition intent %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return ErrIntentNotFound
	}
	return nil
}

// ListStuckMinted возвращает интенты, у которых mint прошёл, а публикация
// в consensus-лог — нет. Grace-период защищает от гонки с inline-путём.
func (r *SettlementRepository) ListStuckMinted(ctx context.Context, olderThan time.Time, limit int) ([]models.SettlementIntent, error) {
	var intents []models.SettlementIntent
	err := r.db.SelectContext(ctx, &intents, `
		SELECT * FROM settlement_intents
		WHERE state = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, models.SettlementStateMinted, olderThan, limit)
	return intents, err
}

func (r *SettlementRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settlement_intents SET attempts = attempts + 1, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}
