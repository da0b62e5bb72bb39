package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
)

// LeaderboardReportStore — агрегация верифицированных отчётов по пользователям.
type LeaderboardReportStore interface {
	AggregateByUser(ctx context.Context, since *time.Time, limit int) ([]models.UserReportAggregate, error)
}

// LeaderboardUserStore — батч-резолв имён участников рейтинга.
type LeaderboardUserStore interface {
	GetByUserIDs(ctx context.Context, userIDs []string) (map[string]models.User, error)
}

// LeaderboardEntry — строка рейтинга.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Events      int     `json:"events"`
	Tokens      int     `json:"tokens"`
	Score       float64 `json:"score"`
}

// Leaderboard — рейтинг за период.
type Leaderboard struct {
	Period  string             `json:"period"`
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardService — рейтинг пользователей по верифицированным уборкам.
type LeaderboardService struct {
	reports LeaderboardReportStore
	users   LeaderboardUserStore
}

func NewLeaderboardService(reports LeaderboardReportStore, users LeaderboardUserStore) *LeaderboardService {
	return &LeaderboardService{reports: reports, users: users}
}

const leaderboardLimit = 50

// GetLeaderboard строит рейтинг за период week/month/alltime.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period string) (*Leaderboard, error) {
	since, err := periodStart(period)
	if err != nil {
		return nil, err
	}

	aggregates, err := s.reports.AggregateByUser(ctx, since, leaderboardLimit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: aggregate: %w", err)
	}

	userIDs := make([]string, 0, len(aggregates))
	for _, a := range aggregates {
		userIDs = append(userIDs, a.UserID)
	}

	usersByID, err := s.users.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(aggregates))
	for i, a := range aggregates {
		displayName := "Anonymous"
		if u, ok := usersByID[a.UserID]; ok && u.DisplayName != "" {
			displayName = u.DisplayName
		}

		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      a.UserID,
			DisplayName: displayName,
			Events:      a.Events,
			Tokens:      a.Tokens,
			Score:       a.Score,
		})
	}

	return &Leaderboard{Period: period, Entries: entries}, nil
}

// periodStart переводит имя периода в нижнюю границу выборки.
// Для alltime граница отсутствует.
func periodStart(period string) (*time.Time, error) {
	now := time.Now().UTC()
	switch period {
	case models.LeaderboardPeriodWeek:
		since := now.AddDate(0, 0, -7)
		return &since, nil
	case models.LeaderboardPeriodMonth:
		since := now.AddDate(0, -1, 0)
		return &since, nil
	case models.LeaderboardPeriodAllTime, "":
		return nil, nil
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый период рейтинга: "+period)
	}
}
