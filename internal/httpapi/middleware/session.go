package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/session"
)

// SessionInfo identifies the authenticated session behind a request.
type SessionInfo struct {
	SessionID string
	UserID    uuid.UUID
}

type sessionContextKey struct{}

// SessionAuth authenticates requests by session cookie.
type SessionAuth struct {
	manager *session.Manager
	cfg     config.SessionConfig
}

// NewSessionAuth creates a new instance.
func NewSessionAuth(manager *session.Manager, cfg config.SessionConfig) *SessionAuth {
	return &SessionAuth{manager: manager, cfg: cfg}
}

// RequireSession ensures the request carries a cookie referencing a live,
// user-owned session row.
func (a *SessionAuth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(a.cfg.CookieName)
		if err != nil || cookie.Value == "" {
			httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}

		row, err := a.manager.Store().Read(r.Context(), cookie.Value)
		if err != nil || row.UserID == nil {
			httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "invalid session")
			return
		}
		if row.LastActivity.Add(a.manager.Lifetime()).Before(time.Now()) {
			httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "session expired")
			return
		}

		info := SessionInfo{SessionID: row.ID, UserID: *row.UserID}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext extracts the session info stored by RequireSession.
func SessionFromContext(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(SessionInfo)
	return info, ok
}

// SetSessionCookie issues the session cookie.
func SetSessionCookie(w http.ResponseWriter, cfg config.SessionConfig, sessionID string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter, cfg config.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
