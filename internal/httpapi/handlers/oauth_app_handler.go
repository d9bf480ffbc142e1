package handlers

import (
	"errors"
	"net/http"

	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/oauthapps"
	"go.uber.org/zap"
)

// OAuthAppHandler serves OAuth2 client application management.
type OAuthAppHandler struct {
	apps   *oauthapps.Service
	logger *zap.Logger
}

// NewOAuthAppHandler creates a new instance.
func NewOAuthAppHandler(apps *oauthapps.Service, logger *zap.Logger) *OAuthAppHandler {
	return &OAuthAppHandler{apps: apps, logger: logger}
}

// Index lists the caller's applications.
func (h *OAuthAppHandler) Index(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	apps, err := h.apps.ListForUser(r.Context(), t.UserID)
	if err != nil {
		h.logger.Error("failed to list oauth applications", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, apps)
}

type createAppRequest struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Store registers a new application.
func (h *OAuthAppHandler) Store(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	var req createAppRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpapi.Error(w, http.StatusUnprocessableEntity, "validation", "name is required")
		return
	}

	app, err := h.apps.Create(r.Context(), t.UserID, req.Name, req.RedirectURIs)
	if err != nil {
		h.logger.Error("failed to create oauth application", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusCreated, app)
}

// Show returns one application.
func (h *OAuthAppHandler) Show(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.apps.GetForUser(r.Context(), t.UserID, id)
	if errors.Is(err, oauthapps.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load oauth application", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, app)
}

type updateAppRequest struct {
	Name         *string  `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Update renames an application and/or replaces its redirect URIs.
func (h *OAuthAppHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateAppRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		httpapi.Error(w, http.StatusUnprocessableEntity, "validation", "name must not be empty")
		return
	}

	app, err := h.apps.UpdateForUser(r.Context(), t.UserID, id, req.Name, req.RedirectURIs)
	if errors.Is(err, oauthapps.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update oauth application", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, app)
}

// Destroy deletes an application.
func (h *OAuthAppHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.apps.DeleteForUser(r.Context(), t.UserID, id)
	if errors.Is(err, oauthapps.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete oauth application", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string]string{"message": "application deleted"})
}

// Revoke flags an application revoked.
func (h *OAuthAppHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.apps.RevokeForUser(r.Context(), t.UserID, id)
	if errors.Is(err, oauthapps.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to revoke oauth application", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string]string{"message": "application revoked"})
}

// RegenerateSecret replaces the application's client secret.
func (h *OAuthAppHandler) RegenerateSecret(w http.ResponseWriter, r *http.Request) {
	t, ok := callerToken(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.apps.RegenerateSecret(r.Context(), t.UserID, id)
	if errors.Is(err, oauthapps.ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to regenerate secret", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, app)
}
