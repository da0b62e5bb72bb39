package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает участника платформы. UserID приходит извне (мобильный клиент),
// HederaAccountID — адрес для начисления наград, задаётся в профиле.
type User struct {
	ID              uuid.UUID `db:"id" json:"-"`
	UserID          string    `db:"user_id" json:"user_id"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	HederaAccountID *string   `db:"hedera_account_id" json:"hedera_account_id,omitempty"`
	EvmAddress      *string   `db:"evm_address" json:"evm_address,omitempty"`
	Did             *string   `db:"did" json:"did,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// UserBalance — баланс наградного токена пользователя.
type UserBalance struct {
	UserID      string `json:"user_id"`
	Balance     int64  `json:"balance"`
	TokenSymbol string `json:"token_symbol"`
}
