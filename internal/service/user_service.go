package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
	"github.com/shebagreen/cleanup-backend/internal/validation"
)

// UserStore — операции над пользователями, нужные сервису.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
}

// BalanceLedger — запрос баланса наградного токена на счёте.
type BalanceLedger interface {
	GetAccountBalance(ctx context.Context, accountID string) (int64, error)
}

// UserService — регистрация пользователей и запрос их токенового баланса.
type UserService struct {
	users       UserStore
	ledger      BalanceLedger
	tokenSymbol string
}

func NewUserService(users UserStore, ledger BalanceLedger, tokenSymbol string) *UserService {
	return &UserService{
		users:       users,
		ledger:      ledger,
		tokenSymbol: tokenSymbol,
	}
}

// CreateUser регистрирует пользователя. Повторная регистрация того же
// user_id — конфликт, а не upsert.
func (s *UserService) CreateUser(ctx context.Context, userID, displayName string, hederaAccountID, evmAddress *string) (*models.User, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if hederaAccountID != nil && *hederaAccountID != "" {
		if err := validation.ValidateHederaAccountID(*hederaAccountID); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	if evmAddress != nil && *evmAddress != "" {
		if err := validation.ValidateEvmAddress(*evmAddress); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	user := &models.User{
		UserID:          userID,
		DisplayName:     displayName,
		HederaAccountID: hederaAccountID,
		EvmAddress:      evmAddress,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperror.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// GetUser возвращает пользователя по внешнему идентификатору.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.ErrUserNotFound
	}
	return user, err
}

// GetUserBalance запрашивает баланс наградного токена на ledger-счёте
// пользователя. Пользователь без привязанного счёта — это 404 по балансу,
// а не нулевой баланс.
func (s *UserService) GetUserBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	if user.HederaAccountID == nil || *user.HederaAccountID == "" {
		return nil, apperror.ErrNoLedgerAccount
	}

	balance, err := s.ledger.GetAccountBalance(ctx, *user.HederaAccountID)
	if err != nil {
		return nil, err
	}

	return &models.UserBalance{
		UserID:      userID,
		Balance:     balance,
		TokenSymbol: s.tokenSymbol,
	}, nil
}
