package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/httpapi/middleware"
	"github.com/inmanturbo/freestack/internal/token"
	"go.uber.org/zap"
)

// AccessTokenHandler serves personal access token management.
type AccessTokenHandler struct {
	tokens *token.Service
	ttl    time.Duration
	logger *zap.Logger
}

// NewAccessTokenHandler creates a new instance. ttl bounds the lifetime of
// tokens minted through this API.
func NewAccessTokenHandler(tokens *token.Service, ttl time.Duration, logger *zap.Logger) *AccessTokenHandler {
	return &AccessTokenHandler{tokens: tokens, ttl: ttl, logger: logger}
}

// Index lists the caller's tokens, newest first.
func (h *AccessTokenHandler) Index(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	tokens, err := h.tokens.ListForUser(r.Context(), t.UserID)
	if err != nil {
		h.logger.Error("failed to list tokens", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, tokens)
}

type createTokenRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// Store mints a new token and returns it with its plaintext bearer, shown
// exactly once.
func (h *AccessTokenHandler) Store(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	var req createTokenRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpapi.Error(w, http.StatusUnprocessableEntity, "validation", "name is required")
		return
	}

	issued, err := h.tokens.Mint(r.Context(), t.UserID, req.Name, req.Scopes, h.ttl)
	if err != nil {
		h.logger.Error("failed to mint token", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusCreated, map[string]any{
		"id":           issued.Token.ID,
		"name":         issued.Token.Name,
		"scopes":       issued.Token.Scopes,
		"access_token": issued.AccessToken,
		"created_at":   issued.Token.CreatedAt,
		"expires_at":   issued.Token.Expiry,
	})
}

// Show returns one of the caller's tokens.
func (h *AccessTokenHandler) Show(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	found, err := h.tokens.GetForUser(r.Context(), t.UserID, id)
	if errors.Is(err, token.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "token not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load token", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, found)
}

type updateTokenRequest struct {
	Name   *string  `json:"name"`
	Scopes []string `json:"scopes"`
}

// Update renames and/or rescopes a token.
func (h *AccessTokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateTokenRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		httpapi.Error(w, http.StatusUnprocessableEntity, "validation", "name must not be empty")
		return
	}

	updated, err := h.tokens.UpdateForUser(r.Context(), t.UserID, id, req.Name, req.Scopes)
	if errors.Is(err, token.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "token not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update token", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, updated)
}

// Destroy deletes a token row.
func (h *AccessTokenHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.tokens.DeleteForUser(r.Context(), t.UserID, id)
	if errors.Is(err, token.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "token not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete token", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string]string{"message": "token deleted"})
}

// Revoke flags a token revoked, keeping the row for audit.
func (h *AccessTokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.tokens.RevokeForUser(r.Context(), t.UserID, id)
	if errors.Is(err, token.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "token not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to revoke token", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string]string{"message": "token revoked"})
}

func callerToken(w http.ResponseWriter, r *http.Request) (*token.Token, bool) {
	t, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no token")
		return nil, false
	}
	return t, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.Error(w, http.StatusNotFound, "not_found", "not found")
		return uuid.Nil, false
	}
	return id, true
}
