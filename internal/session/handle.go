package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Manager hands out session Handles. Constructing one verifies the session
// backend up front: the edge-auth subsystem reads and destroys arbitrary
// session rows by id, which only a server-side queryable driver supports.
type Manager struct {
	store    Store
	lifetime time.Duration
}

// NewManager validates the configured driver and constructs a Manager.
func NewManager(driver string, lifetime time.Duration, store Store) (*Manager, error) {
	if driver != "database" {
		return nil, fmt.Errorf("%w: got driver %q", ErrBackendMisconfigured, driver)
	}
	return &Manager{store: store, lifetime: lifetime}, nil
}

// Lifetime reports the configured session lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// Store exposes the underlying store for read-only row inspection.
func (m *Manager) Store() Store {
	return m.store
}

// Start creates and persists a fresh session for userID.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, ip, userAgent string) (*Handle, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	h := &Handle{
		store: m.store,
		row: &Row{
			ID:        id,
			UserID:    &userID,
			IPAddress: ip,
			UserAgent: userAgent,
		},
		attrs: map[string]any{},
	}
	if err := h.Flush(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle hydrates the session with the given id. Handles for the caller's
// own session and for arbitrary session ids behave identically; callers
// operating outside a request lifecycle must Flush writes themselves. A
// missing row hydrates as an empty session, matching a store-level start.
func (m *Manager) Handle(ctx context.Context, id string) (*Handle, error) {
	row, err := m.store.Read(ctx, id)
	if errors.Is(err, ErrNotFound) {
		row = &Row{ID: id}
	} else if err != nil {
		return nil, err
	}
	return &Handle{
		store: m.store,
		row:   row,
		attrs: DecodePayload(row.Payload),
	}, nil
}

// Handle binds session operations to one concrete session row.
type Handle struct {
	store Store
	row   *Row
	attrs map[string]any
}

// ID returns the bound session id.
func (h *Handle) ID() string {
	return h.row.ID
}

// UserID returns the owning user id, or nil for an anonymous session.
func (h *Handle) UserID() *uuid.UUID {
	return h.row.UserID
}

// Get reads an attribute, returning def when absent. Dotted paths descend
// into nested maps.
func (h *Handle) Get(key string, def any) any {
	return Lookup(h.attrs, key, def)
}

// Put writes an attribute into the in-memory session state. The write is
// not durable until Flush.
func (h *Handle) Put(key string, value any) {
	h.attrs[key] = value
}

// Forget removes an attribute from the in-memory session state.
func (h *Handle) Forget(key string) {
	delete(h.attrs, key)
}

// Flush persists the in-memory attributes to the backing store and bumps
// last_activity.
func (h *Handle) Flush(ctx context.Context) error {
	payload, err := EncodePayload(h.attrs)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}
	h.row.Payload = payload
	h.row.LastActivity = time.Now().UTC()
	return h.store.Write(ctx, h.row)
}

// Destroy removes the session row from the store entirely.
func (h *Handle) Destroy(ctx context.Context) error {
	return h.store.Destroy(ctx, h.row.ID)
}
