package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/inmanturbo/freestack/internal/adminer"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"go.uber.org/zap"
)

// AdminerHandler serves the database-browser auto-login flow.
type AdminerHandler struct {
	client *adminer.Client
	logger *zap.Logger
}

// NewAdminerHandler creates a new instance.
func NewAdminerHandler(client *adminer.Client, logger *zap.Logger) *AdminerHandler {
	return &AdminerHandler{client: client, logger: logger}
}

// Redirect parks the DB credentials under a one-time key and redirects the
// authenticated user into Adminer.
func (h *AdminerHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.client.RedirectURL(r.Context())
	if err != nil {
		h.logger.Error("failed to build adminer redirect", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Resolve hands the credentials for a one-time key to the Adminer login
// plugin, deleting them in the same operation.
func (h *AdminerHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	creds, err := h.client.Pull(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, adminer.ErrKeyNotFound) {
		httpapi.Error(w, http.StatusNotFound, "not_found", "key not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve adminer key", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.JSON(w, http.StatusOK, creds)
}
