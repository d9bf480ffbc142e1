package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates all runtime settings.
type Config struct {
	App      AppConfig      `envPrefix:"FREESTACK_"`
	HTTP     HTTPConfig     `envPrefix:"FREESTACK_HTTP_"`
	Database DatabaseConfig `envPrefix:"FREESTACK_DB_"`
	Redis    RedisConfig    `envPrefix:"FREESTACK_REDIS_"`
	Session  SessionConfig  `envPrefix:"FREESTACK_SESSION_"`
	Token    TokenConfig    `envPrefix:"FREESTACK_TOKEN_"`
	Edge     EdgeConfig     `envPrefix:"FREESTACK_EDGE_"`
	Adminer  AdminerConfig  `envPrefix:"FREESTACK_ADMINER_"`
	Security SecurityConfig `envPrefix:"FREESTACK_SECURITY_"`
}

type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"freestack"`
}

type HTTPConfig struct {
	Host              string        `env:"HOST" envDefault:"0.0.0.0"`
	Port              int           `env:"PORT" envDefault:"4180"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"25s"`
}

type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
}

type RedisConfig struct {
	Addr      string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	EnableTLS bool   `env:"ENABLE_TLS" envDefault:"false"`
	Namespace string `env:"NAMESPACE" envDefault:"freestack"`
}

// SessionConfig controls the server-side session layer. Driver must remain
// "database": the edge-auth subsystem inspects and destroys session rows by
// id, which a cookie-only session cannot support.
type SessionConfig struct {
	Driver       string        `env:"DRIVER" envDefault:"database"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"freestack_session"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
	Lifetime     time.Duration `env:"LIFETIME" envDefault:"120m"`
}

type TokenConfig struct {
	Issuer            string        `env:"ISSUER" envDefault:"https://freestack.local"`
	PrivateKeyPath    string        `env:"PRIVATE_KEY_PATH"`
	PublicKeyPath     string        `env:"PUBLIC_KEY_PATH"`
	PersonalAccessTTL time.Duration `env:"PERSONAL_ACCESS_TTL" envDefault:"8760h"`
}

// EdgeConfig controls edge ticket issuance and the redirect allowlist.
// An empty AllowedHosts list permits any well-formed host.
type EdgeConfig struct {
	AllowedHosts []string      `env:"ALLOWED_HOSTS" envSeparator:","`
	TicketTTL    time.Duration `env:"TICKET_TTL" envDefault:"120m"`
	TicketScopes []string      `env:"TICKET_SCOPES" envSeparator:"," envDefault:"edge"`
	SharedSecret string        `env:"SHARED_SECRET"`
}

type AdminerConfig struct {
	URL      string `env:"URL" envDefault:"http://localhost:8080"`
	Server   string `env:"SERVER" envDefault:"172.18.0.1"`
	Username string `env:"USERNAME" envDefault:"freestack"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE" envDefault:"freestack"`
}

type SecurityConfig struct {
	PasswordMinLength int    `env:"PASSWORD_MIN_LENGTH" envDefault:"12"`
	Argon2Time        uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Memory      uint32 `env:"ARGON2_MEMORY" envDefault:"65536"`
	Argon2Threads     uint8  `env:"ARGON2_THREADS" envDefault:"2"`
	Argon2KeyLength   uint32 `env:"ARGON2_KEY_LENGTH" envDefault:"32"`
}

// Load parses environment variables into Config and performs validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("FREESTACK_DB_URL is required")
	}
	if cfg.Token.PrivateKeyPath == "" || cfg.Token.PublicKeyPath == "" {
		return nil, fmt.Errorf("FREESTACK_TOKEN_PRIVATE_KEY_PATH and FREESTACK_TOKEN_PUBLIC_KEY_PATH are required")
	}
	if cfg.Edge.SharedSecret == "" {
		return nil, fmt.Errorf("FREESTACK_EDGE_SHARED_SECRET is required")
	}

	return cfg, nil
}
