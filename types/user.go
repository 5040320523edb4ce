package types

import "time"

// User represents a registered account.
type User struct {
	// UserID is the unique, case-sensitive login identifier chosen at signup.
	// It never changes once the account exists.
	UserID string `json:"user_id" db:"user_id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated identity attached to a session.
// It is a snapshot of the user taken at signin.
type Principal struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Principal returns the identity portion of the user record.
func (u User) Principal() Principal {
	return Principal{UserID: u.UserID, Name: u.Name}
}
