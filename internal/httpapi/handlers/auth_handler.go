package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/edgeauth"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/httpapi/middleware"
	"github.com/inmanturbo/freestack/internal/password"
	"github.com/inmanturbo/freestack/internal/session"
	"github.com/inmanturbo/freestack/internal/user"
	"go.uber.org/zap"
)

// AuthHandler serves session login and logout.
type AuthHandler struct {
	users    user.Directory
	hasher   *password.Hasher
	sessions *session.Manager
	edge     *edgeauth.Service
	cfg      config.SessionConfig
	logger   *zap.Logger
}

// NewAuthHandler creates a new instance.
func NewAuthHandler(users user.Directory, hasher *password.Hasher, sessions *session.Manager, edge *edgeauth.Service, cfg config.SessionConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		edge:     edge,
		cfg:      cfg,
		logger:   logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates by email/password and starts a database session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	u, err := h.users.ByEmail(r.Context(), req.Email)
	if errors.Is(err, user.ErrNotFound) {
		httpapi.Error(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if err := h.hasher.Compare(u.PasswordHash, req.Password); err != nil {
		httpapi.Error(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	sess, err := h.sessions.Start(r.Context(), u.ID, httpapi.ClientIP(r), httpapi.UserAgent(r))
	if err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	middleware.SetSessionCookie(w, h.cfg, sess.ID(), time.Now().Add(h.sessions.Lifetime()))
	httpapi.Data(w, http.StatusOK, map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	})
}

// Logout revokes the session's edge ticket, destroys the session row and
// clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no session")
		return
	}

	handle, err := h.sessions.Handle(r.Context(), info.SessionID)
	if err != nil {
		h.logger.Error("failed to hydrate session", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if _, err := h.edge.DestroyThisSessionAndToken(r.Context(), handle); err != nil {
		h.logger.Error("failed to destroy session", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	middleware.ClearSessionCookie(w, h.cfg)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no session")
		return
	}
	u, err := h.users.ByID(r.Context(), info.UserID)
	if err != nil {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "unknown user")
		return
	}
	httpapi.Data(w, http.StatusOK, map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	})
}
