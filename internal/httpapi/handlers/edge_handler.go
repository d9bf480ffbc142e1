package handlers

import (
	"errors"
	"net/http"

	"github.com/inmanturbo/freestack/internal/edgeauth"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/httpapi/middleware"
	"github.com/inmanturbo/freestack/internal/session"
	"go.uber.org/zap"
)

// EdgeHandler serves the edge ticket redirect endpoints.
type EdgeHandler struct {
	edge     *edgeauth.Service
	sessions *session.Manager
	logger   *zap.Logger
}

// NewEdgeHandler creates a new instance.
func NewEdgeHandler(edge *edgeauth.Service, sessions *session.Manager, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{edge: edge, sessions: sessions, logger: logger}
}

// Redirect mints an edge ticket for the current session and redirects to
// the validated return target with the ticket merged into its query.
func (h *EdgeHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.currentHandle(w, r)
	if !ok {
		return
	}

	target, err := h.edge.Redirect(r.Context(), handle, redirectRequestFrom(r))
	if err != nil {
		h.writeEdgeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type redirectWithMetaRequest struct {
	Scheme    string         `json:"scheme"`
	Host      string         `json:"host"`
	Return    string         `json:"return"`
	Overrides map[string]any `json:"overrides"`
}

// RedirectWithMetadata is the API form of Redirect with caller-supplied
// metadata overrides; it returns the target URL instead of a 302.
func (h *EdgeHandler) RedirectWithMetadata(w http.ResponseWriter, r *http.Request) {
	var req redirectWithMetaRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	handle, ok := h.currentHandle(w, r)
	if !ok {
		return
	}

	target, err := h.edge.RedirectWithMetadata(r.Context(), handle, edgeauth.RedirectRequest{
		Scheme:    req.Scheme,
		Host:      req.Host,
		Return:    req.Return,
		IP:        httpapi.ClientIP(r),
		UserAgent: httpapi.UserAgent(r),
	}, req.Overrides)
	if err != nil {
		h.writeEdgeError(w, err)
		return
	}
	httpapi.Data(w, http.StatusOK, map[string]string{"redirect": target})
}

func (h *EdgeHandler) currentHandle(w http.ResponseWriter, r *http.Request) (*session.Handle, bool) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no session")
		return nil, false
	}
	handle, err := h.sessions.Handle(r.Context(), info.SessionID)
	if err != nil {
		h.logger.Error("failed to hydrate session", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return nil, false
	}
	return handle, true
}

func (h *EdgeHandler) writeEdgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, edgeauth.ErrInvalidHost):
		httpapi.Error(w, http.StatusBadRequest, "invalid_host", "invalid host")
	case errors.Is(err, edgeauth.ErrHostNotAllowed):
		httpapi.Error(w, http.StatusForbidden, "host_not_allowed", "host not allowed")
	case errors.Is(err, edgeauth.ErrNoSessionUser):
		httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "no user associated with this session")
	default:
		h.logger.Error("edge redirect failed", zap.Error(err))
		httpapi.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func redirectRequestFrom(r *http.Request) edgeauth.RedirectRequest {
	q := r.URL.Query()
	return edgeauth.RedirectRequest{
		Scheme:    q.Get("scheme"),
		Host:      q.Get("host"),
		Return:    q.Get("return"),
		IP:        httpapi.ClientIP(r),
		UserAgent: httpapi.UserAgent(r),
	}
}
