package edgeauth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/session"
	"github.com/inmanturbo/freestack/internal/token"
	"github.com/inmanturbo/freestack/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIssuer struct {
	mu          sync.Mutex
	minted      map[uuid.UUID]*token.Token
	revoked     map[uuid.UUID]bool
	revokeCalls int
	failBulk    bool
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{
		minted:  map[uuid.UUID]*token.Token{},
		revoked: map[uuid.UUID]bool{},
	}
}

func (f *fakeIssuer) Mint(ctx context.Context, userID uuid.UUID, name string, scopes []string, ttl time.Duration) (*token.Issued, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry := time.Now().Add(ttl).UTC()
	t := &token.Token{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
		Expiry:    &expiry,
	}
	f.minted[t.ID] = t
	return &token.Issued{Token: t, AccessToken: "bearer-" + t.ID.String()}, nil
}

func (f *fakeIssuer) RevokeByID(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	f.revoked[id] = true
	return nil
}

func (f *fakeIssuer) RevokeWhereIDIn(ctx context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBulk {
		return errors.New("issuer unavailable")
	}
	for _, id := range ids {
		f.revoked[id] = true
	}
	return nil
}

type fakeDirectory struct {
	users map[uuid.UUID]*user.User
}

func (f *fakeDirectory) ByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type fixture struct {
	svc    *Service
	mgr    *session.Manager
	store  *session.MemoryStore
	issuer *fakeIssuer
	userID uuid.UUID
}

func newFixture(t *testing.T, cfg config.EdgeConfig) *fixture {
	t.Helper()
	store := session.NewMemoryStore()
	mgr, err := session.NewManager("database", 2*time.Hour, store)
	require.NoError(t, err)

	userID := uuid.New()
	issuer := newFakeIssuer()
	if cfg.TicketTTL == 0 {
		cfg.TicketTTL = 2 * time.Hour
	}
	if cfg.TicketScopes == nil {
		cfg.TicketScopes = []string{"edge"}
	}

	svc := New(Dependencies{
		Sessions: mgr,
		Issuer:   issuer,
		Users: &fakeDirectory{users: map[uuid.UUID]*user.User{
			userID: {ID: userID, Email: "owner@example.com"},
		}},
		Config: cfg,
	})

	return &fixture{svc: svc, mgr: mgr, store: store, issuer: issuer, userID: userID}
}

func (f *fixture) startSession(t *testing.T) *session.Handle {
	t.Helper()
	h, err := f.mgr.Start(context.Background(), f.userID, "203.0.113.9", "firefox")
	require.NoError(t, err)
	return h
}

func TestIssueTokenOverwritesSessionSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	first, err := f.svc.IssueToken(ctx, h)
	require.NoError(t, err)
	second, err := f.svc.IssueToken(ctx, h)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token.ID, second.Token.ID)

	// The session slot references only the second token.
	fresh, err := f.mgr.Handle(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, second.Token.ID.String(), fresh.Get(SessionTokenKey, nil))

	// The first token is not auto-revoked by re-issuance.
	assert.False(t, f.issuer.revoked[first.Token.ID])
}

func TestIssueTokenRequiresUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})

	anon, err := f.mgr.Handle(ctx, "anonymous-session")
	require.NoError(t, err)

	_, err = f.svc.IssueToken(ctx, anon)
	assert.ErrorIs(t, err, ErrNoSessionUser)
}

func TestIssueTokenRequiresResolvableUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})

	ghost := uuid.New()
	h, err := f.mgr.Start(ctx, ghost, "", "")
	require.NoError(t, err)

	_, err = f.svc.IssueToken(ctx, h)
	assert.ErrorIs(t, err, ErrNoSessionUser)
}

func TestRedirectBuildsTicketURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{AllowedHosts: []string{"app.example.com"}})
	h := f.startSession(t)

	out, err := f.svc.Redirect(ctx, h, RedirectRequest{
		Scheme:    "https",
		Host:      "app.example.com",
		Return:    "/inbox?folder=spam",
		IP:        "203.0.113.9",
		UserAgent: "firefox",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", parsed.Host)
	assert.Equal(t, "/inbox", parsed.Path)
	assert.Equal(t, "spam", parsed.Query().Get("folder"))
	assert.NotEmpty(t, parsed.Query().Get(TicketParam))
}

func TestRedirectStoresMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	_, err := f.svc.Redirect(ctx, h, RedirectRequest{
		Scheme:    "https",
		Host:      "app.example.com",
		Return:    "/inbox",
		IP:        "203.0.113.9",
		UserAgent: "firefox",
	})
	require.NoError(t, err)

	meta := f.svc.Metadata(ctx, h.ID())
	assert.Equal(t, "app.example.com", meta["app_host"])
	assert.Equal(t, "/inbox", meta["app_path"])
	assert.Equal(t, "https", meta["scheme"])
	assert.Equal(t, "https://app.example.com/inbox", meta["redirect_url"])
	assert.Equal(t, "app.example.com /inbox", meta["label"])
	assert.Equal(t, "203.0.113.9", meta["ip"])
	assert.Equal(t, "firefox", meta["user_agent"])
	assert.Equal(t, TicketName, meta["ticket_name"])
	assert.Equal(t, []any{"edge"}, meta["scopes"])
	assert.NotEmpty(t, meta["token_id"])
	assert.NotEmpty(t, meta["issued_at"])
	assert.NotEmpty(t, meta["expires_at"])

	assert.Equal(t, "app.example.com", f.svc.MetadataValue(ctx, h.ID(), "app_host", ""))
	assert.Equal(t, "def", f.svc.MetadataValue(ctx, h.ID(), "missing_key", "def"))
}

func TestRedirectRootPathLabelIsHostOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	_, err := f.svc.Redirect(ctx, h, RedirectRequest{Host: "app.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "app.example.com", f.svc.Metadata(ctx, h.ID())["label"])
}

func TestRedirectReplacesMetadataWholesale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	_, err := f.svc.RedirectWithMetadata(ctx, h, RedirectRequest{Host: "app.example.com"},
		map[string]any{"device": "laptop", "label": "work laptop"})
	require.NoError(t, err)

	meta := f.svc.Metadata(ctx, h.ID())
	assert.Equal(t, "laptop", meta["device"])
	assert.Equal(t, "work laptop", meta["label"], "override wins over the default label")

	// A plain redirect afterwards replaces the map; the override is gone.
	_, err = f.svc.Redirect(ctx, h, RedirectRequest{Host: "app.example.com"})
	require.NoError(t, err)

	meta = f.svc.Metadata(ctx, h.ID())
	assert.NotContains(t, meta, "device")
	assert.Equal(t, "app.example.com", meta["label"])
}

func TestRedirectRejectsDisallowedHost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{AllowedHosts: []string{"app.example.com"}})
	h := f.startSession(t)

	_, err := f.svc.Redirect(ctx, h, RedirectRequest{Host: "evil.com"})
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	_, err = f.svc.Redirect(ctx, h, RedirectRequest{Host: "evil.com/x?y"})
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestDestroyThisSessionAndToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	issued, err := f.svc.IssueToken(ctx, h)
	require.NoError(t, err)

	ok, err := f.svc.DestroyThisSessionAndToken(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.issuer.revoked[issued.Token.ID])

	_, err = f.store.Read(ctx, h.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDestroyWithoutTokenSkipsRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})
	h := f.startSession(t)

	ok, err := f.svc.DestroyThisSessionAndToken(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.issuer.revokeCalls, "no revoke call for a session without a ticket")

	_, err = f.store.Read(ctx, h.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDestroyAllOtherSessionsAndTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})

	current := f.startSession(t)
	currentIssued, err := f.svc.IssueToken(ctx, current)
	require.NoError(t, err)

	otherA := f.startSession(t)
	issuedA, err := f.svc.IssueToken(ctx, otherA)
	require.NoError(t, err)
	otherB := f.startSession(t)
	issuedB, err := f.svc.IssueToken(ctx, otherB)
	require.NoError(t, err)

	count, err := f.svc.DestroyAllOtherSessionsAndTokens(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.True(t, f.issuer.revoked[issuedA.Token.ID])
	assert.True(t, f.issuer.revoked[issuedB.Token.ID])
	assert.False(t, f.issuer.revoked[currentIssued.Token.ID], "current session's token stays live")

	_, err = f.store.Read(ctx, otherA.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = f.store.Read(ctx, otherB.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = f.store.Read(ctx, current.ID())
	assert.NoError(t, err, "current session row survives")
}

func TestDestroyAllOtherAbortsBeforeDestroyOnRevokeFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})

	current := f.startSession(t)
	other := f.startSession(t)
	_, err := f.svc.IssueToken(ctx, other)
	require.NoError(t, err)

	f.issuer.failBulk = true

	_, err = f.svc.DestroyAllOtherSessionsAndTokens(ctx, current)
	require.Error(t, err)

	// The other session row must survive an aborted sweep.
	_, err = f.store.Read(ctx, other.ID())
	assert.NoError(t, err)
}

func TestDestroyAllOtherToleratesTicketlessSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EdgeConfig{})

	current := f.startSession(t)
	f.startSession(t) // never issued a ticket

	count, err := f.svc.DestroyAllOtherSessionsAndTokens(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
