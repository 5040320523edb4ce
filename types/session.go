package types

import "time"

// Session is a server-side login session.
type Session struct {
	// TokenHash is the hex SHA-256 digest of the token held by the client.
	// The raw token itself is never stored.
	TokenHash string `db:"token_hash"`

	// Principal is the identity the session was issued for.
	Principal Principal

	// CreatedAt is when the session was issued.
	CreatedAt time.Time `db:"created_at"`

	// ExpiresAt is the absolute expiry; sessions are not renewed on activity.
	ExpiresAt time.Time `db:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
