// Package session implements the server-side session layer: a queryable
// database-backed store of session rows, a fail-soft codec for the opaque
// payload column, and a Handle bound to one concrete session id.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no session row exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrBackendMisconfigured is raised once at startup when the configured
	// session driver cannot be queried by id.
	ErrBackendMisconfigured = errors.New("session backend must be queryable by id (driver \"database\")")
)

// Row is one session record as persisted in the sessions table. Payload is
// an opaque base64 blob; use DecodePayload to inspect it.
type Row struct {
	ID           string
	UserID       *uuid.UUID
	IPAddress    string
	UserAgent    string
	Payload      string
	LastActivity time.Time
}

// Store persists session rows keyed by opaque session ids.
type Store interface {
	// Read returns the row for id, or ErrNotFound.
	Read(ctx context.Context, id string) (*Row, error)
	// Write upserts the row.
	Write(ctx context.Context, row *Row) error
	// Destroy removes the row entirely. Missing rows are a no-op.
	Destroy(ctx context.Context, id string) error
	// IDsByUser lists session ids owned by userID, excluding excludeID when
	// non-empty.
	IDsByUser(ctx context.Context, userID uuid.UUID, excludeID string) ([]string, error)
	// Payload returns the raw payload column for id without hydrating the
	// row. Missing rows yield an empty string, not an error.
	Payload(ctx context.Context, id string) (string, error)
}

// GenerateID returns a cryptographically random session id.
func GenerateID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
