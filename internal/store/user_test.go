package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/quillpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users \(user_id, name, password_hash\)`).
		WithArgs("alice", "Alice", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	user, err := repo.Create(context.Background(), types.User{UserID: "alice", Name: "Alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.UserID)
	assert.Equal(t, created, user.CreatedAt)
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "Alice", "hash").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), types.User{UserID: "alice", Name: "Alice", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{UserID: "alice", Name: "Alice", PasswordHash: "hash"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "db down")
}

func TestUserRepository_GetByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	created := time.Now().UTC()

	mock.ExpectQuery(`SELECT user_id, name, password_hash, created_at\s+FROM users\s+WHERE user_id = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "password_hash", "created_at"}).
			AddRow("alice", "Alice", "hash", created))

	user, err := repo.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, types.User{UserID: "alice", Name: "Alice", PasswordHash: "hash", CreatedAt: created}, user)
}

func TestUserRepository_GetByUserID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
