package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps defines router construction dependencies.
type RouterDeps struct {
	HealthHandler     http.HandlerFunc
	AuthHandlers      AuthHandlers
	EdgeHandlers      EdgeHandlers
	SessionHandlers   SessionHandlers
	TokenHandlers     TokenHandlers
	AppHandlers       AppHandlers
	Introspect        http.HandlerFunc
	AdminerRedirect   http.HandlerFunc
	AdminerResolve    http.HandlerFunc
	RequireSession    func(http.Handler) http.Handler
	RequireToken      func(http.Handler) http.Handler
	RequireEdgeSecret func(http.Handler) http.Handler
	RateLimitLogin    func(http.Handler) http.Handler
}

// AuthHandlers groups the HTTP handlers for auth routes.
type AuthHandlers struct {
	Login  http.HandlerFunc
	Logout http.HandlerFunc
	Me     http.HandlerFunc
}

// EdgeHandlers groups the edge redirect handlers.
type EdgeHandlers struct {
	Redirect         http.HandlerFunc
	RedirectWithMeta http.HandlerFunc
}

// SessionHandlers groups the session management handlers.
type SessionHandlers struct {
	List          http.HandlerFunc
	DestroyOthers http.HandlerFunc
}

// TokenHandlers groups the personal access token handlers.
type TokenHandlers struct {
	Index   http.HandlerFunc
	Store   http.HandlerFunc
	Show    http.HandlerFunc
	Update  http.HandlerFunc
	Destroy http.HandlerFunc
	Revoke  http.HandlerFunc
}

// AppHandlers groups the OAuth application handlers.
type AppHandlers struct {
	Index            http.HandlerFunc
	Store            http.HandlerFunc
	Show             http.HandlerFunc
	Update           http.HandlerFunc
	Destroy          http.HandlerFunc
	Revoke           http.HandlerFunc
	RegenerateSecret http.HandlerFunc
}

// NewRouter wires HTTP routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Edge-Secret"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.HealthHandler != nil {
		r.Get("/healthz", deps.HealthHandler)
	}

	// Edge ticket hand-off. The browser session is the sole credential.
	r.Group(func(r chi.Router) {
		if deps.RequireSession != nil {
			r.Use(deps.RequireSession)
		}
		r.Get("/edge/redirect", deps.EdgeHandlers.Redirect)
		r.Post("/edge/redirect/meta", deps.EdgeHandlers.RedirectWithMeta)
		r.Get("/database", deps.AdminerRedirect)
	})

	// Consumed server side by the Adminer login plugin, not by browsers.
	r.Get("/api/adminer/{key}", deps.AdminerResolve)

	r.Group(func(r chi.Router) {
		if deps.RequireEdgeSecret != nil {
			r.Use(deps.RequireEdgeSecret)
		}
		r.Get("/oauth/introspect", deps.Introspect)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if deps.RateLimitLogin != nil {
				r.With(deps.RateLimitLogin).Post("/login", deps.AuthHandlers.Login)
			} else {
				r.Post("/login", deps.AuthHandlers.Login)
			}

			r.Group(func(r chi.Router) {
				if deps.RequireSession != nil {
					r.Use(deps.RequireSession)
				}
				r.Post("/logout", deps.AuthHandlers.Logout)
				r.Get("/me", deps.AuthHandlers.Me)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			if deps.RequireSession != nil {
				r.Use(deps.RequireSession)
			}
			r.Get("/", deps.SessionHandlers.List)
			r.Post("/destroy-others", deps.SessionHandlers.DestroyOthers)
		})

		r.Route("/access-tokens", func(r chi.Router) {
			if deps.RequireToken != nil {
				r.Use(deps.RequireToken)
			}
			r.Get("/", deps.TokenHandlers.Index)
			r.Post("/", deps.TokenHandlers.Store)
			r.Get("/{id}", deps.TokenHandlers.Show)
			r.Put("/{id}", deps.TokenHandlers.Update)
			r.Delete("/{id}", deps.TokenHandlers.Destroy)
			r.Post("/{id}/revoke", deps.TokenHandlers.Revoke)
		})

		r.Route("/oauth-applications", func(r chi.Router) {
			if deps.RequireToken != nil {
				r.Use(deps.RequireToken)
			}
			r.Get("/", deps.AppHandlers.Index)
			r.Post("/", deps.AppHandlers.Store)
			r.Get("/{id}", deps.AppHandlers.Show)
			r.Put("/{id}", deps.AppHandlers.Update)
			r.Delete("/{id}", deps.AppHandlers.Destroy)
			r.Post("/{id}/revoke", deps.AppHandlers.Revoke)
			r.Post("/{id}/regenerate-secret", deps.AppHandlers.RegenerateSecret)
		})
	})

	return r
}
