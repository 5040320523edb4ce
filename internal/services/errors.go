package services

import (
	"errors"

	"github.com/quillpost/apiserver/internal/store"
)

// Domain errors. Handlers map each of these to a fixed status and message.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("not owner")
	ErrNotFound           = store.ErrNotFound
)
