package handlers

import (
	"net/http"
	"strings"

	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/token"
	"github.com/inmanturbo/freestack/internal/user"
	"go.uber.org/zap"
)

// IntrospectHandler lets the edge proxy check ticket tokens. The route is
// guarded by the shared-secret middleware; revocation and expiry are
// checked against the token row on every call, never inferred from
// session state.
type IntrospectHandler struct {
	tokens *token.Service
	users  user.Directory
	logger *zap.Logger
}

// NewIntrospectHandler creates a new instance.
func NewIntrospectHandler(tokens *token.Service, users user.Directory, logger *zap.Logger) *IntrospectHandler {
	return &IntrospectHandler{tokens: tokens, users: users, logger: logger}
}

// Introspect reports whether the presented bearer is active.
func (h *IntrospectHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	bearer := httpapi.BearerToken(r)
	if bearer == "" {
		httpapi.JSON(w, http.StatusUnauthorized, map[string]any{"active": false})
		return
	}

	t, err := h.tokens.Validate(r.Context(), bearer)
	if err != nil {
		httpapi.JSON(w, http.StatusUnauthorized, map[string]any{"active": false})
		return
	}

	u, err := h.users.ByID(r.Context(), t.UserID)
	if err != nil {
		httpapi.JSON(w, http.StatusUnauthorized, map[string]any{"active": false})
		return
	}

	var exp any
	if t.Expiry != nil {
		exp = t.Expiry.Unix()
	}

	w.Header().Set("X-Auth-User-Id", u.ID.String())
	httpapi.JSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"username":   u.Email,
		"client_id":  "edge",
		"token_type": "access_token",
		"exp":        exp,
		"scope":      strings.Join(t.Scopes, " "),
	})
}
