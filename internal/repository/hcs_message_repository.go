package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/shebagreen/cleanup-backend/internal/models"
)

// HcsMessageRepository — зеркало публикаций в consensus-топик. Append-only:
// записи создаются один раз и никогда не изменяются.
type HcsMessageRepository struct {
	db *sqlx.DB
}

func NewHcsMessageRepository(db *sqlx.DB) *HcsMessageRepository {
	return &HcsMessageRepository{db: db}
}

func (r *HcsMessageRepository) Create(ctx context.Context, msg *models.HcsMessage) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO hcs_messages (topic_id, message, consensus_timestamp, tx_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, msg.TopicID, msg.Message, msg.ConsensusTimestamp, msg.TxID).
		Scan(&msg.ID, &msg.CreatedAt)
}

func (r *HcsMessageRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.HcsMessage, error) {
	var messages []models.HcsMessage
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM hcs_messages ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return messages, err
}

func (r *HcsMessageRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM hcs_messages`)
	return count, err
}
