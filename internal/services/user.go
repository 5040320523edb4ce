package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quillpost/apiserver/internal/store"
	"github.com/quillpost/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new password hashes.
const DefaultBcryptCost = 12

// maxPasswordBytes is the most bcrypt reads. Longer passwords are accepted and
// only their first maxPasswordBytes bytes are significant.
const maxPasswordBytes = 72

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService is the credential store: it registers accounts and verifies
// passwords.
type UserService struct {
	repo UserRepository
	cost int

	// dummyHash is compared against when the user does not exist.
	dummyHash []byte
}

func NewUserService(repo UserRepository, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = DefaultBcryptCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("services: hash placeholder password: %v", err))
	}
	return &UserService{repo: repo, cost: bcryptCost, dummyHash: dummyHash}
}

// Register creates an account. user_id and name are trimmed; the password is
// hashed as given, truncated to its first 72 bytes, and must not be blank.
func (s *UserService) Register(ctx context.Context, userID, password, name string) (types.User, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" || strings.TrimSpace(password) == "" {
		return types.User{}, ErrInvalidInput
	}

	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), s.cost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		UserID:       userID,
		Name:         name,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateUser
		}
		return types.User{}, err
	}
	return user, nil
}

// Verify checks a password and returns the matching principal. An unknown
// user and a wrong password both yield ErrInvalidCredentials, and both pay
// for one bcrypt comparison.
func (s *UserService) Verify(ctx context.Context, userID, password string) (types.Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || password == "" {
		return types.Principal{}, ErrInvalidInput
	}

	user, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, bcryptInput(password))
			return types.Principal{}, ErrInvalidCredentials
		}
		return types.Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(password)); err != nil {
		return types.Principal{}, ErrInvalidCredentials
	}
	return user.Principal(), nil
}

func (s *UserService) GetByUserID(ctx context.Context, userID string) (types.User, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
