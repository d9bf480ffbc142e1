package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRejectsNonDatabaseDriver(t *testing.T) {
	for _, driver := range []string{"cookie", "array", ""} {
		_, err := NewManager(driver, time.Hour, NewMemoryStore())
		assert.ErrorIs(t, err, ErrBackendMisconfigured)
	}
}

func TestStartAndRehydrate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr, err := NewManager("database", 2*time.Hour, store)
	require.NoError(t, err)

	userID := uuid.New()
	h, err := mgr.Start(ctx, userID, "203.0.113.7", "curl/8.0")
	require.NoError(t, err)
	require.NotEmpty(t, h.ID())

	h.Put("current_passport_token_id", "abc")
	require.NoError(t, h.Flush(ctx))

	// A disconnected handle for the same id sees the flushed state.
	other, err := mgr.Handle(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, "abc", other.Get("current_passport_token_id", nil))
	require.NotNil(t, other.UserID())
	assert.Equal(t, userID, *other.UserID())
}

func TestPutIsNotDurableUntilFlush(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr, err := NewManager("database", time.Hour, store)
	require.NoError(t, err)

	h, err := mgr.Start(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	h.Put("key", "value")

	fresh, err := mgr.Handle(ctx, h.ID())
	require.NoError(t, err)
	assert.Nil(t, fresh.Get("key", nil))

	require.NoError(t, h.Flush(ctx))
	fresh, err = mgr.Handle(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, "value", fresh.Get("key", nil))
}

func TestHandleForMissingIDHydratesEmpty(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager("database", time.Hour, NewMemoryStore())
	require.NoError(t, err)

	h, err := mgr.Handle(ctx, "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, h.UserID())
	assert.Equal(t, "def", h.Get("anything", "def"))
}

func TestDestroyRemovesRow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr, err := NewManager("database", time.Hour, store)
	require.NoError(t, err)

	h, err := mgr.Start(ctx, uuid.New(), "", "")
	require.NoError(t, err)
	require.NoError(t, h.Destroy(ctx))

	_, err = store.Read(ctx, h.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}
