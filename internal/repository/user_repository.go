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
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	// ErrDidAlreadySet возвращается, если DID пользователя уже записан:
	// политика "один DID навсегда" обеспечивается условным апдейтом.
	ErrDidAlreadySet = errors.New("user already has a did")
)

// Код Postgres для нарушения уникального ограничения.
const pqUniqueViolation = "23505"

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, display_name, hedera_account_id, evm_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, user.UserID, user.DisplayName, user.HederaAccountID, user.EvmAddress).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrUserExists
	}
	return err
}

func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "user_id", userID, ErrUserNotFound)
}

// GetByUserIDs возвращает пользователей по списку внешних идентификаторов.
func (r *UserRepository) GetByUserIDs(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var users []models.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users WHERE user_id = ANY($1)
	`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}

	for _, u := range users {
		result[u.UserID] = u
	}
	return result, nil
}

// SetDid записывает DID только если он ещё не задан.
func (r *UserRepository) SetDid(ctx context.Context, userID, did string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET did = $2, updated_at = NOW()
		WHERE user_id = $1 AND did IS NULL
	`, userID, did)
	if err != nil {
		return fmt.Errorf("set did for user %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set did for user %s: rows affected: %w", userID, err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.GetByUserID(ctx, userID); err != nil {
		return err
	}
	return ErrDidAlreadySet
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}
