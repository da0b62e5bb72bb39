package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/repository/common"
)

var (
	ErrTokenNotFound = errors.New("token metadata not found")
	ErrTokenExists   = errors.New("token metadata already exists")
)

// TokenRepository хранит локальный дескриптор наградного токена и
// закреплённый за ним consensus-топик. Уникальность symbol гарантирует,
// что проигравший гонку создатель получает ErrTokenExists и уходит на lookup.
type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *models.TokenMetadata) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tokens (token_id, name, symbol, decimals, total_supply, topic_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, token.TokenID, token.Name, token.Symbol, token.Decimals, token.TotalSupply, token.TopicID).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrTokenExists
	}
	return err
}

func (r *TokenRepository) GetBySymbol(ctx context.Context, symbol string) (*models.TokenMetadata, error) {
	return common.GetByField[models.TokenMetadata](ctx, r.db, "tokens", "symbol", symbol, ErrTokenNotFound)
}

// SetTopicID сохраняет созданный консенсус-топик, чтобы он переживал рестарты.
func (r *TokenRepository) SetTopicID(ctx context.Context, symbol, topicID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET topic_id = $2, updated_at = NOW() WHERE symbol = $1
	`, symbol, topicID)
	if err != nil {
		return fmt.Errorf("set topic id for token %s: %w", symbol, err)
	}
	return nil
}

// AddSupply увеличивает локальный счётчик эмиссии (best-effort, не авторитетный).
func (r *TokenRepository) AddSupply(ctx context.Context, symbol string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET total_supply = total_supply + $2, updated_at = NOW() WHERE symbol = $1
	`, symbol, amount)
	if err != nil {
		return fmt.Errorf("add supply for token %s: %w", symbol, err)
	}
	return nil
}
