package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"github.com/shebagreen/cleanup-backend/internal/models"
)

// FeedReportStore — выборка верифицированных отчётов для ленты.
type FeedReportStore interface {
	ListVerified(ctx context.Context, limit, offset int, sortByTokens bool) ([]models.Report, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

// FeedUserStore — батч-резолв имён авторов ленты.
type FeedUserStore interface {
	GetByUserIDs(ctx context.Context, userIDs []string) (map[string]models.User, error)
}

// FeedItem — публичная карточка верифицированной уборки.
type FeedItem struct {
	ReportID      uuid.UUID `json:"report_id"`
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	BeforeImage   string    `json:"before_image"`
	AfterImage    string    `json:"after_image,omitempty"`
	TokensAwarded int64     `json:"tokens_awarded"`
	TokenTxID     *string   `json:"token_tx_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeedPage — страница ленты с общим числом записей.
type FeedPage struct {
	Items []FeedItem `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// FeedService — публичная лента верифицированных уборок.
type FeedService struct {
	reports      FeedReportStore
	users        FeedUserStore
	rewardAmount int64
}

func NewFeedService(reports FeedReportStore, users FeedUserStore, rewardAmount int64) *FeedService {
	if rewardAmount <= 0 {
		rewardAmount = 1
	}
	return &FeedService{reports: reports, users: users, rewardAmount: rewardAmount}
}

const (
	feedDefaultLimit = 20
	feedMaxLimit     = 100
)

// GetFeed возвращает страницу ленты (нумерация страниц с единицы). Имена
// авторов подтягиваются одним батч-запросом; пользователи без записи
// показываются как "Anonymous".
func (s *FeedService) GetFeed(ctx context.Context, page, limit int, sortByTokens bool) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = feedDefaultLimit
	}
	if limit > feedMaxLimit {
		limit = feedMaxLimit
	}
	offset := (page - 1) * limit

	reports, err := s.reports.ListVerified(ctx, limit, offset, sortByTokens)
	if err != nil {
		return nil, fmt.Errorf("feed: list verified: %w", err)
	}

	total, err := s.reports.CountByStatus(ctx, models.ReportStatusVerified)
	if err != nil {
		return nil, fmt.Errorf("feed: count verified: %w", err)
	}

	userIDs := make([]string, 0, len(reports))
	seen := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		if _, ok := seen[r.UserID]; !ok {
			seen[r.UserID] = struct{}{}
			userIDs = append(userIDs, r.UserID)
		}
	}

	usersByID, err := s.users.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(reports))
	for _, r := range reports {
		displayName := "Anonymous"
		if u, ok := usersByID[r.UserID]; ok && u.DisplayName != "" {
			displayName = u.DisplayName
		}

		var tokens int64
		if r.TokenTxID != nil {
			tokens = s.rewardAmount
		}

		item := FeedItem{
			ReportID:      r.ReportID,
			UserID:        r.UserID,
			DisplayName:   displayName,
			Title:         "Cleanup Report",
			Summary:       feedSummary(r.DetectionResult),
			BeforeImage:   r.BeforeImagePath,
			TokensAwarded: tokens,
			TokenTxID:     r.TokenTxID,
			CreatedAt:     r.CreatedAt,
		}
		if r.AfterImagePath != nil {
			item.AfterImage = *r.AfterImagePath
		}

		items = append(items, item)
	}

	return &FeedPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// feedSummary строит короткое описание по числу обнаруженных объектов.
// Результат детекции — внешний JSON, поэтому парсинг строго best-effort.
func feedSummary(detectionResult types.JSONText) string {
	var parsed struct {
		Boxes []json.RawMessage `json:"boxes"`
		Count *int              `json:"count"`
	}
	if err := json.Unmarshal(detectionResult, &parsed); err != nil {
		return "Verified cleanup"
	}

	count := len(parsed.Boxes)
	if parsed.Count != nil {
		count = *parsed.Count
	}
	if count == 0 {
		return "Verified cleanup"
	}
	return fmt.Sprintf("Cleaned up %d detected item(s)", count)
}
