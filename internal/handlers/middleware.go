package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/services"
)

// LoadPrincipal resolves the session cookie, if any, and stores the
// principal in the request context. It never rejects a request; a store
// failure is remembered so that protected routes can answer 500 instead of
// 401.
func LoadPrincipal(sessions *services.SessionManager, cookieName string, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			principal, err := sessions.Resolve(ctx, cookie.Value)
			if err != nil {
				logger.Error(ctx, "resolving session", "error", err)
				ctx = withSessionError(ctx, err)
			} else if principal != nil {
				ctx = withPrincipal(ctx, principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := services.RequirePrincipal(principalFromContext(r.Context())); err != nil {
			if sessionErrorFromContext(r.Context()) != nil {
				writeError(w, http.StatusInternalServerError, msgServerError)
				return
			}
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one structured log line per request.
func AccessLog(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info(r.Context(), "http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Timestamp: time.Now().UnixMilli()})
}

type HealthResponse struct {
	OK        bool  `json:"ok"`
	Timestamp int64 `json:"timestamp"`
}
