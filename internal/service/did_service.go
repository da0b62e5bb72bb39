package service

import (
	"context"
	"errors"

	"github.com/shebagreen/cleanup-backend/internal/hedera"
	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/pkg/apperror"
	"github.com/shebagreen/cleanup-backend/internal/repository"
)

// DidUserStore — чтение пользователя и однократная запись DID.
type DidUserStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	SetDid(ctx context.Context, userID, did string) error
}

// DidLedger — создание и анкеринг DID в consensus-логе.
type DidLedger interface {
	CreateDID(ctx context.Context, userID string) (*hedera.DidResult, error)
}

// DidService — выпуск децентрализованного идентификатора для пользователя.
// DID выдаётся один раз навсегда: повторный запрос — конфликт.
type DidService struct {
	users  DidUserStore
	ledger DidLedger
}

func NewDidService(users DidUserStore, ledger DidLedger) *DidService {
	return &DidService{users: users, ledger: ledger}
}

// CreateDid выпускает DID, анкерит документ в consensus-лог и привязывает
// DID к пользователю. Проверка "DID уже есть" выполняется дважды: до
// дорогого обращения к ledger и атомарно при записи.
func (s *DidService) CreateDid(ctx context.Context, userID string) (*hedera.DidResult, error) {
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	if user.Did != nil && *user.Did != "" {
		return nil, apperror.ErrDidAlreadyExists
	}

	result, err := s.ledger.CreateDID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetDid(ctx, userID, result.Did); err != nil {
		if errors.Is(err, repository.ErrDidAlreadySet) {
			// Конкурентный запрос успел первым: документ уже заанкерен
			// дважды, но привязан остаётся первый DID.
			return nil, apperror.ErrDidAlreadyExists
		}
		return nil, err
	}

	return result, nil
}
