// Package edgeauth bridges browser sessions to the edge proxy: it mints a
// personal access token scoped to one session, hands it to the target
// application via a validated ?ticket= redirect, records human-readable
// metadata inside the session payload, and revokes tokens together with
// the sessions that hold them.
package edgeauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/session"
	"github.com/inmanturbo/freestack/internal/token"
	"github.com/inmanturbo/freestack/internal/user"
	"go.uber.org/zap"
)

// ErrNoSessionUser is returned when the session has no resolvable user.
var ErrNoSessionUser = errors.New("no user associated with this session")

const (
	// TicketName names every minted edge ticket token.
	TicketName = "edge-ticket"
	// TicketParam is the query parameter carrying the plaintext bearer.
	TicketParam = "ticket"
	// SessionTokenKey is the session attribute holding the current token id.
	SessionTokenKey = "current_passport_token_id"
	// MetadataKey is the session attribute holding the issuance metadata.
	MetadataKey = "edge_session"
)

// Issuer is the token-issuer surface the service consumes.
type Issuer interface {
	Mint(ctx context.Context, userID uuid.UUID, name string, scopes []string, ttl time.Duration) (*token.Issued, error)
	RevokeByID(ctx context.Context, id uuid.UUID) error
	RevokeWhereIDIn(ctx context.Context, ids []uuid.UUID) error
}

// Directory resolves session user ids to accounts.
type Directory interface {
	ByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// RedirectRequest carries the request-derived inputs of a redirect call.
type RedirectRequest struct {
	Scheme    string
	Host      string
	Return    string
	IP        string
	UserAgent string
}

// Service orchestrates ticket issuance and session/token teardown. It is
// stateless; every operation binds to the session Handle it is given.
type Service struct {
	sessions *session.Manager
	issuer   Issuer
	users    Directory
	cfg      config.EdgeConfig
	logger   *zap.Logger
}

// Dependencies aggregates constructor inputs.
type Dependencies struct {
	Sessions *session.Manager
	Issuer   Issuer
	Users    Directory
	Config   config.EdgeConfig
	Logger   *zap.Logger
}

// New initialises the edge-auth service.
func New(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: deps.Sessions,
		issuer:   deps.Issuer,
		users:    deps.Users,
		cfg:      deps.Config,
		logger:   logger,
	}
}

// IssueToken mints a ticket token for the session's user and records the
// token id in the session, overwriting any previous id. The prior token is
// deliberately left unrevoked so overlapping tickets keep working across
// tabs; only the destroy operations revoke.
func (s *Service) IssueToken(ctx context.Context, h *session.Handle) (*token.Issued, error) {
	u, err := s.resolveUser(ctx, h)
	if err != nil {
		return nil, err
	}

	issued, err := s.issuer.Mint(ctx, u.ID, TicketName, s.cfg.TicketScopes, s.cfg.TicketTTL)
	if err != nil {
		return nil, fmt.Errorf("mint ticket token: %w", err)
	}

	h.Put(SessionTokenKey, issued.Token.ID.String())
	if err := h.Flush(ctx); err != nil {
		return nil, err
	}
	return issued, nil
}

// Redirect issues a token, validates the return target and stores the
// default issuance metadata, then returns the target URL with the ticket
// merged into its query string.
func (s *Service) Redirect(ctx context.Context, h *session.Handle, req RedirectRequest) (string, error) {
	return s.redirect(ctx, h, req, nil)
}

// RedirectWithMetadata is Redirect with caller overrides shallow-merged on
// top of the default metadata before storage.
func (s *Service) RedirectWithMetadata(ctx context.Context, h *session.Handle, req RedirectRequest, overrides map[string]any) (string, error) {
	return s.redirect(ctx, h, req, overrides)
}

func (s *Service) redirect(ctx context.Context, h *session.Handle, req RedirectRequest, overrides map[string]any) (string, error) {
	issued, err := s.IssueToken(ctx, h)
	if err != nil {
		return "", err
	}

	target, err := BuildReturnURL(req.Scheme, req.Host, req.Return, s.cfg.AllowedHosts)
	if err != nil {
		return "", err
	}

	meta := s.defaultMeta(target, issued, req)
	for key, value := range overrides {
		meta[key] = value
	}

	// Wholesale replace: metadata always describes the latest issuance.
	h.Put(MetadataKey, meta)
	if err := h.Flush(ctx); err != nil {
		return "", err
	}

	s.logger.Info("issued edge ticket",
		zap.String("session_id", h.ID()),
		zap.String("token_id", issued.Token.ID.String()),
		zap.String("host", target.Host),
	)

	return AppendQuery(target.String(), url.Values{TicketParam: {issued.AccessToken}}), nil
}

// DestroyThisSessionAndToken revokes the session's current token, if any,
// and destroys the session row. Sessions that never issued a ticket are
// destroyed without a revoke call.
func (s *Service) DestroyThisSessionAndToken(ctx context.Context, h *session.Handle) (bool, error) {
	if id, ok := tokenID(h.Get(SessionTokenKey, nil)); ok {
		if err := s.issuer.RevokeByID(ctx, id); err != nil {
			return false, err
		}
	}
	if err := h.Destroy(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DestroyAllOtherSessionsAndTokens revokes the tokens held by all of the
// user's other sessions and destroys those sessions, returning the number
// of sessions destroyed. The order is fixed: collect ids, revoke tokens in
// one batch, then destroy rows. A revocation failure aborts before any
// session is destroyed. Sessions created concurrently with the collection
// snapshot are out of scope of the sweep.
func (s *Service) DestroyAllOtherSessionsAndTokens(ctx context.Context, h *session.Handle) (int, error) {
	userID := h.UserID()
	if userID == nil {
		return 0, ErrNoSessionUser
	}

	store := s.sessions.Store()
	otherIDs, err := store.IDsByUser(ctx, *userID, h.ID())
	if err != nil {
		return 0, err
	}

	var tokenIDs []uuid.UUID
	for _, sid := range otherIDs {
		payload, err := store.Payload(ctx, sid)
		if err != nil {
			return 0, err
		}
		attrs := session.DecodePayload(payload)
		if id, ok := tokenID(attrs[SessionTokenKey]); ok {
			tokenIDs = append(tokenIDs, id)
		}
	}

	if len(tokenIDs) > 0 {
		if err := s.issuer.RevokeWhereIDIn(ctx, tokenIDs); err != nil {
			return 0, fmt.Errorf("revoke session tokens: %w", err)
		}
	}

	for _, sid := range otherIDs {
		if err := store.Destroy(ctx, sid); err != nil {
			return 0, err
		}
	}

	s.logger.Info("destroyed other sessions",
		zap.String("user_id", userID.String()),
		zap.Int("sessions", len(otherIDs)),
		zap.Int("tokens_revoked", len(tokenIDs)),
	)

	return len(otherIDs), nil
}

// Metadata returns the edge_session metadata recorded for sessionID,
// reading the raw session row. Absent or corrupt metadata yields an empty
// map, never an error.
func (s *Service) Metadata(ctx context.Context, sessionID string) map[string]any {
	payload, err := s.sessions.Store().Payload(ctx, sessionID)
	if err != nil {
		return map[string]any{}
	}
	return session.EdgeMetadata(payload)
}

// MetadataValue looks up one dotted-path key inside the recorded metadata,
// returning def when any stage fails.
func (s *Service) MetadataValue(ctx context.Context, sessionID, key string, def any) any {
	payload, err := s.sessions.Store().Payload(ctx, sessionID)
	if err != nil {
		return def
	}
	return session.EdgeMetadataValue(payload, key, def)
}

func (s *Service) resolveUser(ctx context.Context, h *session.Handle) (*user.User, error) {
	userID := h.UserID()
	if userID == nil {
		return nil, ErrNoSessionUser
	}
	u, err := s.users.ByID(ctx, *userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrNoSessionUser
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session user: %w", err)
	}
	return u, nil
}

func (s *Service) defaultMeta(target *ReturnURL, issued *token.Issued, req RedirectRequest) map[string]any {
	label := target.Host
	if target.Path != "" && target.Path != "/" {
		label = target.Host + " " + target.Path
	}

	var expiresAt any
	if issued.Token.Expiry != nil {
		expiresAt = issued.Token.Expiry.Format(time.RFC3339)
	}

	return map[string]any{
		"token_id":     issued.Token.ID.String(),
		"issued_at":    time.Now().UTC().Format(time.RFC3339),
		"expires_at":   expiresAt,
		"redirect_url": target.String(),
		"app_host":     target.Host,
		"app_path":     target.Path,
		"scheme":       target.Scheme,
		"ip":           req.IP,
		"user_agent":   req.UserAgent,
		"label":        label,
		"scopes":       issued.Token.Scopes,
		"ticket_name":  TicketName,
	}
}

func tokenID(value any) (uuid.UUID, bool) {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
