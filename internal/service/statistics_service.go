package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// StatsReportStore — счётчики по отчётам для глобальной и пользовательской статистики.
type StatsReportStore interface {
	CountAll(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	CountRewarded(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	CountByUserAndStatus(ctx context.Context, userID, status string) (int, error)
	CountRewardedByUser(ctx context.Context, userID string) (int, error)
	CountUsersWithMoreRewards(ctx context.Context, tokens int) (int, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]models.ReportSummary, error)
}

// StatsUserStore — данные о пользователях для статистики.
type StatsUserStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// GlobalStatistics — сводка по всей системе.
type GlobalStatistics struct {
	TotalUsers         int            `json:"total_users"`
	TotalReports       int            `json:"total_reports"`
	TotalVerified      int            `json:"total_verified"`
	TotalTokensAwarded int64          `json:"total_tokens_awarded"`
	RecentActivity     RecentActivity `json:"recent_activity"`
}

// RecentActivity — число отчётов за скользящие окна.
type RecentActivity struct {
	Last24Hours int `json:"last_24_hours"`
	Last7Days   int `json:"last_7_days"`
	Last30Days  int `json:"last_30_days"`
}

// UserStatistics — сводка по одному пользователю.
type UserStatistics struct {
	UserID        string                 `json:"user_id"`
	DisplayName   string                 `json:"display_name"`
	TotalReports  int                    `json:"total_reports"`
	Verified      int                    `json:"verified"`
	Rejected      int                    `json:"rejected"`
	TokensEarned  int64                  `json:"tokens_earned"`
	Rank          int                    `json:"rank"`
	RecentReports []models.ReportSummary `json:"recent_reports"`
	JoinedAt      time.Time              `json:"joined_at"`
}

// StatisticsService — агрегированные метрики активности.
type StatisticsService struct {
	reports      StatsReportStore
	users        StatsUserStore
	rewardAmount int64
}

func NewStatisticsService(reports StatsReportStore, users StatsUserStore, rewardAmount int64) *StatisticsService {
	if rewardAmount <= 0 {
		rewardAmount = 1
	}
	return &StatisticsService{reports: reports, users: users, rewardAmount: rewardAmount}
}

const statsRecentReportsLimit = 10

// GetGlobalStatistics собирает сводку по всей системе.
func (s *StatisticsService) GetGlobalStatistics(ctx context.Context) (*GlobalStatistics, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count users: %w", err)
	}

	totalReports, err := s.reports.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count reports: %w", err)
	}

	totalVerified, err := s.reports.CountByStatus(ctx, models.ReportStatusVerified)
	if err != nil {
		return nil, fmt.Errorf("stats: count verified: %w", err)
	}

	rewarded, err := s.reports.CountRewarded(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count rewarded: %w", err)
	}

	now := time.Now().UTC()
	activity := RecentActivity{}
	for _, window := range []struct {
		since time.Time
		dst   *int
	}{
		{now.Add(-24 * time.Hour), &activity.Last24Hours},
		{now.AddDate(0, 0, -7), &activity.Last7Days},
		{now.AddDate(0, 0, -30), &activity.Last30Days},
	} {
		count, err := s.reports.CountCreatedSince(ctx, window.since)
		if err != nil {
			return nil, fmt.Errorf("stats: count recent: %w", err)
		}
		*window.dst = count
	}

	return &GlobalStatistics{
		TotalUsers:         totalUsers,
		TotalReports:       totalReports,
		TotalVerified:      totalVerified,
		TotalTokensAwarded: int64(rewarded) * s.rewardAmount,
		RecentActivity:     activity,
	}, nil
}

// GetUserStatistics собирает сводку по пользователю, включая место в рейтинге
// по заработанным токенам.
func (s *StatisticsService) GetUserStatistics(ctx context.Context, userID string) (*UserStatistics, error) {
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	total, err := s.reports.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("stats: count user reports: %w", err)
	}

	verified, err := s.reports.CountByUserAndStatus(ctx, userID, models.ReportStatusVerified)
	if err != nil {
		return nil, fmt.Errorf("stats: count user verified: %w", err)
	}

	rejected, err := s.reports.CountByUserAndStatus(ctx, userID, models.ReportStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("stats: count user rejected: %w", err)
	}

	rewarded, err := s.reports.CountRewardedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("stats: count user rewarded: %w", err)
	}

	ahead, err := s.reports.CountUsersWithMoreRewards(ctx, rewarded)
	if err != nil {
		return nil, fmt.Errorf("stats: compute rank: %w", err)
	}

	recent, err := s.reports.ListRecentByUser(ctx, userID, statsRecentReportsLimit)
	if err != nil {
		return nil, fmt.Errorf("stats: recent reports: %w", err)
	}

	return &UserStatistics{
		UserID:        userID,
		DisplayName:   user.DisplayName,
		TotalReports:  total,
		Verified:      verified,
		Rejected:      rejected,
		TokensEarned:  int64(rewarded) * s.rewardAmount,
		Rank:          ahead + 1,
		RecentReports: recent,
		JoinedAt:      user.CreatedAt,
	}, nil
}
