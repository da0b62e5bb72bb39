package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// TokenMetadata — локально закэшированный дескриптор наградного токена.
// TotalSupply ведётся best-effort: авторитетный источник — сам ledger.
type TokenMetadata struct {
	ID          uuid.UUID `db:"id" json:"-"`
	TokenID     string    `db:"token_id" json:"token_id"`
	Name        string    `db:"name" json:"name"`
	Symbol      string    `db:"symbol" json:"symbol"`
	Decimals    int       `db:"decimals" json:"decimals"`
	TotalSupply int64     `db:"total_supply" json:"total_supply"`
	TopicID     *string   `db:"topic_id" json:"topic_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HcsMessage — зеркальная запись сообщения, опубликованного в consensus-топик.
// Append-only: создаётся один раз на публикацию, не изменяется и не удаляется.
type HcsMessage struct {
	ID                 uuid.UUID      `db:"id" json:"-"`
	TopicID            string         `db:"topic_id" json:"topic_id"`
	Message            types.JSONText `db:"message" json:"message"`
	ConsensusTimestamp string         `db:"consensus_timestamp" json:"consensus_timestamp"`
	TxID               string         `db:"tx_id" json:"tx_id"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// SettlementIntent — durable-запись о намерении рассчитаться за верификацию.
// Пишется до mint, переводится в MINTED после transfer и в COMPLETED после
// публикации в consensus-лог и финализации отчёта. Интенты, застрявшие в
// MINTED, добирает фоновый reconciler.
type SettlementIntent struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	ReportID           uuid.UUID      `db:"report_id" json:"report_id"`
	UserID             string         `db:"user_id" json:"user_id"`
	AccountID          string         `db:"account_id" json:"account_id"`
	Amount             int64          `db:"amount" json:"amount"`
	AfterImagePath     string         `db:"after_image_path" json:"after_image_path"`
	VerificationResult types.JSONText `db:"verification_result" json:"verification_result"`
	State              string         `db:"state" json:"state"`
	TokenTxID          *string        `db:"token_tx_id" json:"token_tx_id,omitempty"`
	HcsTxID            *string        `db:"hcs_tx_id" json:"hcs_tx_id,omitempty"`
	Attempts           int            `db:"attempts" json:"attempts"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}
