package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Report описывает жизненный цикл одной заявки на уборку:
// от фото "до" до финального результата верификации.
type Report struct {
	ID                 uuid.UUID       `db:"id" json:"-"`
	ReportID           uuid.UUID       `db:"report_id" json:"report_id"`
	UserID             string          `db:"user_id" json:"user_id"`
	BeforeImagePath    string          `db:"before_image_path" json:"before_image_path"`
	AfterImagePath     *string         `db:"after_image_path" json:"after_image_path,omitempty"`
	DetectionResult    types.JSONText  `db:"detection_result" json:"detection_result,omitempty"`
	RandomPrompt       string          `db:"random_prompt" json:"random_prompt"`
	VerificationResult *types.JSONText `db:"verification_result" json:"verification_result,omitempty"`
	Status             string          `db:"status" json:"status"`
	TokenTxID          *string         `db:"token_tx_id" json:"token_tx_id,omitempty"`
	HcsMessageID       *string         `db:"hcs_message_id" json:"hcs_message_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// UserReportAggregate — агрегат отчётов пользователя для лидерборда.
type UserReportAggregate struct {
	UserID string  `db:"user_id" json:"user_id"`
	Events int     `db:"events" json:"events"`
	Tokens int     `db:"tokens" json:"tokens"`
	Score  float64 `db:"score" json:"score"`
}

// ReportSummary — краткая запись для списка последних отчётов пользователя.
type ReportSummary struct {
	ReportID  uuid.UUID `db:"report_id" json:"report_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
