package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/inmanturbo/freestack/internal/adminer"
	"github.com/inmanturbo/freestack/internal/cache"
	"github.com/inmanturbo/freestack/internal/config"
	"github.com/inmanturbo/freestack/internal/database"
	"github.com/inmanturbo/freestack/internal/edgeauth"
	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/httpapi/handlers"
	httpmiddleware "github.com/inmanturbo/freestack/internal/httpapi/middleware"
	"github.com/inmanturbo/freestack/internal/oauthapps"
	"github.com/inmanturbo/freestack/internal/password"
	"github.com/inmanturbo/freestack/internal/session"
	"github.com/inmanturbo/freestack/internal/token"
	"github.com/inmanturbo/freestack/internal/user"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App wires core dependencies and exposes server lifecycle controls.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	httpServer *http.Server
}

// New constructs the application.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	redisClient, err := cache.New(cfg.Redis)
	if err != nil {
		return nil, err
	}

	signer, err := token.NewSigner(cfg.Token.Issuer, cfg.Token.PrivateKeyPath, cfg.Token.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	tokenSvc := token.NewService(db, signer)

	sessionStore := session.NewPostgresStore(db)
	sessionManager, err := session.NewManager(cfg.Session.Driver, cfg.Session.Lifetime, sessionStore)
	if err != nil {
		return nil, err
	}

	users := user.NewPostgresDirectory(db)
	hasher := password.NewHasher(cfg.Security)

	edgeService := edgeauth.New(edgeauth.Dependencies{
		Sessions: sessionManager,
		Issuer:   tokenSvc,
		Users:    users,
		Config:   cfg.Edge,
		Logger:   logger,
	})

	adminerClient := adminer.NewClient(redisClient, cfg.Adminer, cfg.Session.Lifetime)

	sessionAuth := httpmiddleware.NewSessionAuth(sessionManager, cfg.Session)
	bearerAuth := httpmiddleware.NewBearerAuth(tokenSvc)
	rateLimiter := httpmiddleware.NewRateLimiter(redisClient, cfg.Redis.Namespace)

	authHandler := handlers.NewAuthHandler(users, hasher, sessionManager, edgeService, cfg.Session, logger)
	edgeHandler := handlers.NewEdgeHandler(edgeService, sessionManager, logger)
	sessionHandler := handlers.NewSessionHandler(sessionManager, edgeService, logger)
	tokenHandler := handlers.NewAccessTokenHandler(tokenSvc, cfg.Token.PersonalAccessTTL, logger)
	appHandler := handlers.NewOAuthAppHandler(oauthapps.NewService(db), logger)
	introspectHandler := handlers.NewIntrospectHandler(tokenSvc, users, logger)
	adminerHandler := handlers.NewAdminerHandler(adminerClient, logger)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		HealthHandler: handlers.Health,
		AuthHandlers: httpapi.AuthHandlers{
			Login:  authHandler.Login,
			Logout: authHandler.Logout,
			Me:     authHandler.Me,
		},
		EdgeHandlers: httpapi.EdgeHandlers{
			Redirect:         edgeHandler.Redirect,
			RedirectWithMeta: edgeHandler.RedirectWithMetadata,
		},
		SessionHandlers: httpapi.SessionHandlers{
			List:          sessionHandler.List,
			DestroyOthers: sessionHandler.DestroyOthers,
		},
		TokenHandlers: httpapi.TokenHandlers{
			Index:   tokenHandler.Index,
			Store:   tokenHandler.Store,
			Show:    tokenHandler.Show,
			Update:  tokenHandler.Update,
			Destroy: tokenHandler.Destroy,
			Revoke:  tokenHandler.Revoke,
		},
		AppHandlers: httpapi.AppHandlers{
			Index:            appHandler.Index,
			Store:            appHandler.Store,
			Show:             appHandler.Show,
			Update:           appHandler.Update,
			Destroy:          appHandler.Destroy,
			Revoke:           appHandler.Revoke,
			RegenerateSecret: appHandler.RegenerateSecret,
		},
		Introspect:        introspectHandler.Introspect,
		AdminerRedirect:   adminerHandler.Redirect,
		AdminerResolve:    adminerHandler.Resolve,
		RequireSession:    sessionAuth.RequireSession,
		RequireToken:      bearerAuth.RequireToken,
		RequireEdgeSecret: httpmiddleware.RequireEdgeSecret(cfg.Edge.SharedSecret),
		RateLimitLogin:    rateLimiter.Limit("login", 60, time.Minute, func(r *http.Request) string { return r.RemoteAddr }),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		httpServer: server,
	}, nil
}

// Run starts the HTTP server.
func (a *App) Run() error {
	a.logger.Info("starting HTTP server", zap.String("addr", a.httpServer.Addr))
	return a.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes resources.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownErr := a.httpServer.Shutdown(ctx)

	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis client", zap.Error(err))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}
