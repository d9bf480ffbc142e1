// Package token issues and validates personal access tokens. A token is a
// database row carrying name, scopes, a revocation flag and an expiry; its
// bearer form is a signed JWT whose jti is the row id. Revocation flips the
// flag and keeps the row for audit.
package token

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no token row matches the lookup.
	ErrNotFound = errors.New("token not found")
	// ErrInvalid is returned when a bearer string fails validation.
	ErrInvalid = errors.New("token invalid")
	// ErrRevoked is returned when the token row has been revoked.
	ErrRevoked = errors.New("token revoked")
	// ErrExpired is returned when the token row has expired.
	ErrExpired = errors.New("token expired")
)

// Token is one personal access token record.
type Token struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Expiry    *time.Time `json:"expires_at"`
}

// Expired reports whether the token's expiry has passed.
func (t *Token) Expired() bool {
	return t.Expiry != nil && t.Expiry.Before(time.Now())
}

// Issued pairs a freshly minted token row with its plaintext bearer form.
// The bearer string is returned exactly once and never stored.
type Issued struct {
	Token       *Token
	AccessToken string
}
