package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/store"
	"github.com/quillpost/apiserver/types"
)

const (
	// DefaultSessionTTL is the absolute lifetime of a session.
	DefaultSessionTTL = 7 * 24 * time.Hour

	tokenBytes  = 32
	secretBytes = 32
)

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) error
	Get(ctx context.Context, tokenHash string) (types.Session, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionManager issues, resolves and destroys server-side sessions. The
// client holds a signed cookie naming its session; the principal lives here.
//
// The cookie value is an HS256 JWT whose jti is a random session id. Only the
// SHA-256 digest of that id is stored. Cookies with a bad signature are
// rejected before the store is consulted.
type SessionManager struct {
	repo   SessionRepository
	ttl    time.Duration
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
	logger logging.Logger
}

// NewSessionManager constructs a SessionManager. An empty secret is replaced
// by a random one, valid for the life of the process.
func NewSessionManager(repo SessionRepository, ttl time.Duration, secret []byte, logger logging.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if len(secret) == 0 {
		secret = make([]byte, secretBytes)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("generating session secret: %v", err))
		}
		logger.Warn(context.Background(), "no session secret configured; using a random one")
	}
	return &SessionManager{
		repo:   repo,
		ttl:    ttl,
		secret: secret,
		// Expiry is enforced against the stored record, not the cookie.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now:    time.Now,
		logger: logger,
	}
}

// SetClock overrides the time source.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// TTL is the absolute session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a new session for p and returns the cookie value to hand
// to the client.
func (m *SessionManager) Create(ctx context.Context, p types.Principal) (string, types.Session, error) {
	id, err := generateToken()
	if err != nil {
		return "", types.Session{}, fmt.Errorf("generating session token: %w", err)
	}

	now := m.now()
	session := types.Session{
		TokenHash: hashToken(id),
		Principal: p,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := m.sign(id, session)
	if err != nil {
		return "", types.Session{}, fmt.Errorf("signing session token: %w", err)
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return "", types.Session{}, fmt.Errorf("storing session: %w", err)
	}
	return token, session, nil
}

// Resolve returns the principal for token, or nil when the token is
// malformed, forged, unknown or expired. An error is only returned for store
// failures.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*types.Principal, error) {
	claims, ok := m.verify(token)
	if !ok {
		return nil, nil
	}

	key := hashToken(claims.ID)
	session, err := m.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session.Principal.UserID != claims.Subject {
		return nil, nil
	}

	if session.Expired(m.now()) {
		if err := m.repo.Delete(ctx, key); err != nil {
			m.logger.Warn(ctx, "failed to delete expired session", "error", err)
		}
		return nil, nil
	}

	p := session.Principal
	return &p, nil
}

// Destroy removes the session for token. It is idempotent, and malformed or
// forged tokens are ignored.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	claims, ok := m.verify(token)
	if !ok {
		return nil
	}
	if err := m.repo.Delete(ctx, hashToken(claims.ID)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PruneExpired deletes every expired session and reports how many went.
func (m *SessionManager) PruneExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now())
}

// RunCleanup prunes expired sessions immediately and then every interval
// until ctx is done.
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	m.prune(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prune(ctx)
		}
	}
}

func (m *SessionManager) prune(ctx context.Context) {
	removed, err := m.PruneExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error(ctx, "cleaning up expired sessions", "error", err)
		}
		return
	}
	if removed > 0 {
		m.logger.Info(ctx, "removed expired sessions", "count", removed)
	}
}

func (m *SessionManager) sign(id string, session types.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   session.Principal.UserID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// verify checks the cookie signature and the shape of the session id.
func (m *SessionManager) verify(token string) (jwt.RegisteredClaims, bool) {
	if token == "" || strings.Count(token, ".") != 2 {
		return jwt.RegisteredClaims{}, false
	}

	var claims jwt.RegisteredClaims
	parsed, err := m.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid || !wellFormedToken(claims.ID) {
		return jwt.RegisteredClaims{}, false
	}
	return claims, true
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func wellFormedToken(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
