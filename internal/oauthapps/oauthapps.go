// Package oauthapps manages OAuth2 client applications registered by users.
package oauthapps

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no application matches the lookup.
var ErrNotFound = errors.New("oauth application not found")

// Application is one registered OAuth2 client.
type Application struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"-"`
	Name         string    `json:"name"`
	Secret       string    `json:"secret,omitempty"`
	RedirectURIs []string  `json:"redirect_uris"`
	Revoked      bool      `json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service persists applications.
type Service struct {
	db *sql.DB
}

// NewService constructs a Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const appColumns = `id, user_id, name, secret, redirect_uris, revoked, created_at, updated_at`

// Create registers a new application and returns it with its secret. The
// secret is stored plaintext and shown in later reads as well; regeneration
// replaces it.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string, redirectURIs []string) (*Application, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	app := &Application{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Secret:       secret,
		RedirectURIs: redirectURIs,
	}
	if app.RedirectURIs == nil {
		app.RedirectURIs = []string{}
	}
	urisJSON, err := json.Marshal(app.RedirectURIs)
	if err != nil {
		return nil, fmt.Errorf("marshal redirect uris: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO oauth_clients (id, user_id, name, secret, redirect_uris)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		app.ID, app.UserID, app.Name, app.Secret, urisJSON,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create oauth application: %w", err)
	}
	return app, nil
}

// ListForUser returns the user's applications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appColumns+` FROM oauth_clients WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list oauth applications: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	apps := []*Application{}
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list oauth applications: %w", err)
	}
	return apps, nil
}

// GetForUser fetches one application owned by userID.
func (s *Service) GetForUser(ctx context.Context, userID, id uuid.UUID) (*Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM oauth_clients WHERE id = $1 AND user_id = $2`, id, userID)
	return scanApp(row)
}

// UpdateForUser renames an application and/or replaces its redirect URIs.
func (s *Service) UpdateForUser(ctx context.Context, userID, id uuid.UUID, name *string, redirectURIs []string) (*Application, error) {
	app, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		app.Name = *name
	}
	if redirectURIs != nil {
		app.RedirectURIs = redirectURIs
	}
	urisJSON, err := json.Marshal(app.RedirectURIs)
	if err != nil {
		return nil, fmt.Errorf("marshal redirect uris: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`UPDATE oauth_clients SET name = $1, redirect_uris = $2, updated_at = now()
		 WHERE id = $3 AND user_id = $4 RETURNING updated_at`,
		app.Name, urisJSON, id, userID,
	).Scan(&app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update oauth application: %w", err)
	}
	return app, nil
}

// DeleteForUser removes an application.
func (s *Service) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete oauth application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeForUser flags an application revoked, keeping the row.
func (s *Service) RevokeForUser(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE oauth_clients SET revoked = TRUE, updated_at = now()
		 WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke oauth application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RegenerateSecret replaces the application's secret and returns the
// updated application carrying the new secret.
func (s *Service) RegenerateSecret(ctx context.Context, userID, id uuid.UUID) (*Application, error) {
	app, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx,
		`UPDATE oauth_clients SET secret = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3 RETURNING updated_at`,
		secret, id, userID,
	).Scan(&app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("regenerate secret: %w", err)
	}
	app.Secret = secret
	return app, nil
}

func scanApp(row interface{ Scan(dest ...any) error }) (*Application, error) {
	app := &Application{}
	var urisJSON []byte
	err := row.Scan(&app.ID, &app.UserID, &app.Name, &app.Secret, &urisJSON,
		&app.Revoked, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan oauth application: %w", err)
	}
	if err := json.Unmarshal(urisJSON, &app.RedirectURIs); err != nil {
		app.RedirectURIs = []string{}
	}
	return app, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
