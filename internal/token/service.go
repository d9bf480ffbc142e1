package token

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service persists token rows and produces their bearer form.
type Service struct {
	db     *sql.DB
	signer *Signer
}

// NewService constructs a Service.
func NewService(db *sql.DB, signer *Signer) *Service {
	return &Service{db: db, signer: signer}
}

const tokenColumns = `id, user_id, name, scopes, revoked, created_at, updated_at, expires_at`

// Mint creates a new token for userID expiring after ttl. Every call mints
// a distinct token; the caller owns deduplication, if any. The expiry is
// computed here so it tracks the caller's lifetime, not a signer default.
func (s *Service) Mint(ctx context.Context, userID uuid.UUID, name string, scopes []string, ttl time.Duration) (*Issued, error) {
	if scopes == nil {
		scopes = []string{}
	}
	expiry := now().Add(ttl)
	t := &Token{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Scopes:    scopes,
		CreatedAt: now(),
		Expiry:    &expiry,
	}

	scopesJSON, err := json.Marshal(t.Scopes)
	if err != nil {
		return nil, fmt.Errorf("marshal scopes: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO oauth_access_tokens (id, user_id, name, scopes, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $5, $6)
		 RETURNING updated_at`,
		t.ID, t.UserID, t.Name, scopesJSON, t.CreatedAt, *t.Expiry,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}

	bearer, err := s.signer.Sign(t)
	if err != nil {
		return nil, err
	}
	return &Issued{Token: t, AccessToken: bearer}, nil
}

// RevokeByID flips the revoked flag. Unknown or already revoked ids are a
// no-op, so the call is idempotent.
func (s *Service) RevokeByID(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE oauth_access_tokens SET revoked = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeWhereIDIn revokes every id in one set-based statement.
func (s *Service) RevokeWhereIDIn(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE oauth_access_tokens SET revoked = TRUE, updated_at = now()
		 WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

// Validate parses a bearer string and checks its row for revocation and
// expiry. Session state never substitutes for this check.
func (s *Service) Validate(ctx context.Context, bearer string) (*Token, error) {
	tokenID, userID, err := s.signer.Parse(bearer)
	if err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, tokenID)
	if err != nil {
		return nil, ErrInvalid
	}
	if t.UserID != userID {
		return nil, ErrInvalid
	}
	if t.Revoked {
		return nil, ErrRevoked
	}
	if t.Expired() {
		return nil, ErrExpired
	}
	return t, nil
}

// Get fetches one token row by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_access_tokens WHERE id = $1`, id)
	return scanToken(row)
}

// GetForUser fetches one token row owned by userID.
func (s *Service) GetForUser(ctx context.Context, userID, id uuid.UUID) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_access_tokens WHERE id = $1 AND user_id = $2`, id, userID)
	return scanToken(row)
}

// ListForUser returns the user's tokens, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_access_tokens
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := []*Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// UpdateForUser renames and/or rescopes a token. Nil arguments leave the
// field untouched.
func (s *Service) UpdateForUser(ctx context.Context, userID, id uuid.UUID, name *string, scopes []string) (*Token, error) {
	t, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		t.Name = *name
	}
	if scopes != nil {
		t.Scopes = scopes
	}
	scopesJSON, err := json.Marshal(t.Scopes)
	if err != nil {
		return nil, fmt.Errorf("marshal scopes: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`UPDATE oauth_access_tokens SET name = $1, scopes = $2, updated_at = now()
		 WHERE id = $3 AND user_id = $4 RETURNING updated_at`,
		t.Name, scopesJSON, id, userID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update token: %w", err)
	}
	return t, nil
}

// DeleteForUser removes a token row. Unlike revocation this drops the
// audit record; it backs the explicit DELETE endpoint only.
func (s *Service) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_access_tokens WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeForUser revokes a token after verifying ownership.
func (s *Service) RevokeForUser(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.GetForUser(ctx, userID, id); err != nil {
		return err
	}
	return s.RevokeByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*Token, error) {
	t := &Token{}
	var scopesJSON []byte
	var expiry sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &scopesJSON, &t.Revoked, &t.CreatedAt, &t.UpdatedAt, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	if expiry.Valid {
		t.Expiry = &expiry.Time
	}
	if err := json.Unmarshal(scopesJSON, &t.Scopes); err != nil {
		t.Scopes = []string{}
	}
	return t, nil
}
