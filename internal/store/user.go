package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillpost/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUserID looks up a user by its exact, case-sensitive user id.
func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (types.User, error) {
	const query = `
		SELECT user_id, name, password_hash, created_at
		FROM users
		WHERE user_id = $1`
	var user types.User
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create inserts the user. The primary key on user_id is what enforces
// uniqueness, so concurrent signups for the same id cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (user_id, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.UserID,
		user.Name,
		user.PasswordHash,
	).Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
