package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/quillpost/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const (
	contextPrincipalKey    contextKey = "principal"
	contextSessionErrorKey contextKey = "session_error"
)

// Response messages. Errors that reach the client are limited to these.
const (
	msgMissingFields      = "Missing required fields"
	msgInvalidCredentials = "Invalid credentials"
	msgDuplicateUser      = "User ID already exists."
	msgNotAuthenticated   = "Not authenticated"
	msgNotOwner           = "Not owner."
	msgPostNotFound       = "Post not found"
	msgServerError        = "Server error"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a successful command.
type MessageResponse struct {
	Message string `json:"message"`
}

func withPrincipal(ctx context.Context, p *types.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, p)
}

// principalFromContext returns the principal resolved for this request, or
// nil for anonymous requests.
func principalFromContext(ctx context.Context) *types.Principal {
	p, _ := ctx.Value(contextPrincipalKey).(*types.Principal)
	return p
}

func withSessionError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, contextSessionErrorKey, err)
}

func sessionErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(contextSessionErrorKey).(error)
	return err
}

// decodeJSON decodes exactly one JSON object into dst. Unknown fields, type
// mismatches, trailing data and oversized bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}
