package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore implements Store on the sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Read(ctx context.Context, id string) (*Row, error) {
	row := &Row{}
	var userID uuid.NullUUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, ip_address, user_agent, payload, last_activity
		 FROM sessions WHERE id = $1`, id,
	).Scan(&row.ID, &userID, &row.IPAddress, &row.UserAgent, &row.Payload, &row.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if userID.Valid {
		row.UserID = &userID.UUID
	}
	return row, nil
}

func (s *PostgresStore) Write(ctx context.Context, row *Row) error {
	if row.LastActivity.IsZero() {
		row.LastActivity = time.Now().UTC()
	}
	var userID any
	if row.UserID != nil {
		userID = *row.UserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, ip_address, user_agent, payload, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			payload = EXCLUDED.payload,
			last_activity = EXCLUDED.last_activity`,
		row.ID, userID, row.IPAddress, row.UserAgent, row.Payload, row.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (s *PostgresStore) IDsByUser(ctx context.Context, userID uuid.UUID, excludeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE user_id = $1 AND id != $2 ORDER BY last_activity DESC`,
		userID, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions by user: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions by user: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Payload(ctx context.Context, id string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session payload: %w", err)
	}
	return payload, nil
}
