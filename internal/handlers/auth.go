package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/services"
	"github.com/quillpost/apiserver/types"
)

// CookieSettings controls how the session cookie is written.
type CookieSettings struct {
	Name   string
	Secure bool
}

// AuthHandler provides session-based authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	sessions    *services.SessionManager
	cookie      CookieSettings
	logger      logging.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	userService *services.UserService,
	sessions *services.SessionManager,
	cookie CookieSettings,
	logger logging.Logger,
) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		cookie:      cookie,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.SignUp)
	r.Post("/signin", handler.SignIn)
	r.Post("/signout", handler.SignOut)
	r.Get("/me", handler.Me)
}

// SignUp creates a new account. It does not sign the user in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	_, err := h.userService.Register(r.Context(), req.UserID, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, msgMissingFields)
		case errors.Is(err, services.ErrDuplicateUser):
			writeError(w, http.StatusConflict, msgDuplicateUser)
		default:
			h.logger.Error(r.Context(), "POST /auth/signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	writeMessage(w, http.StatusCreated, "Sign-up successful.")
}

// SignIn verifies credentials, starts a session and sets the session cookie.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	principal, err := h.userService.Verify(r.Context(), req.UserID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, msgMissingFields)
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			h.logger.Error(r.Context(), "POST /auth/signin failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	token, session, err := h.sessions.Create(r.Context(), principal)
	if err != nil {
		h.logger.Error(r.Context(), "POST /auth/signin failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	h.setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, SignInResponse{Message: "Sign-in successful.", User: principal})
}

// SignOut destroys the current session, if any, and clears the cookie. It
// always succeeds from the client's point of view.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil && cookie.Value != "" {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			h.logger.Error(r.Context(), "POST /auth/signout failed to delete session", "error", err)
		}
	}

	h.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Sign-out successful.")
}

// Me returns the current principal, or null when not signed in.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MeResponse{User: principalFromContext(r.Context())})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type SignUpRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type SignInResponse struct {
	Message string          `json:"message"`
	User    types.Principal `json:"user"`
}

type MeResponse struct {
	User *types.Principal `json:"user"`
}
