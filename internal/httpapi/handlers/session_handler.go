package handlers

import (
	"net/http"

	"github.com/inmanturbo/freestack/internal/edgeauth"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/httpapi/middleware"
	"github.com/inmanturbo/freestack/internal/session"
	"go.uber.org/zap"
)

// SessionHandler serves the sessions settings surface.
type SessionHandler struct {
	sessions *session.Manager
	edge     *edgeauth.Service
	logger   *zap.Logger
}

// NewSessionHandler creates a new instance.
func NewSessionHandler(sessions *session.Manager, edge *edgeauth.Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, edge: edge, logger: logger}
}

// List returns the user's sessions with their recorded edge labels.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no session")
		return
	}

	store := h.sessions.Store()
	ids, err := store.IDsByUser(r.Context(), info.UserID, "")
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	out := []map[string]any{}
	for _, id := range ids {
		row, err := store.Read(r.Context(), id)
		if err != nil {
			continue // destroyed since listing
		}
		out = append(out, map[string]any{
			"current":       id == info.SessionID,
			"ip_address":    row.IPAddress,
			"user_agent":    row.UserAgent,
			"last_activity": row.LastActivity,
			"label":         h.edge.MetadataValue(r.Context(), id, "label", ""),
			"ticket_issued": h.edge.MetadataValue(r.Context(), id, "issued_at", nil),
		})
	}
	httpapi.Data(w, http.StatusOK, out)
}

// DestroyOthers revokes the tickets of all other sessions of the user and
// destroys those sessions.
func (h *SessionHandler) DestroyOthers(w http.ResponseWriter, r *http.Request) {
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

	count, err := h.edge.DestroyAllOtherSessionsAndTokens(r.Context(), handle)
	if err != nil {
		h.logger.Error("failed to destroy other sessions", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpapi.Data(w, http.StatusOK, map[string]int{"destroyed": count})
}
