// Package adminer builds the database-browser auto-login redirect. The
// configured DB credentials are parked in Redis under a one-time key that
// the Adminer login plugin pulls exactly once.
package adminer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/inmanturbo/freestack/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned when a one-time key is absent or already used.
var ErrKeyNotFound = errors.New("adminer key not found")

// Credentials is the payload handed to the Adminer login plugin.
type Credentials struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Client issues Adminer redirects.
type Client struct {
	redis *redis.Client
	cfg   config.AdminerConfig
	ttl   time.Duration
}

// NewClient constructs a Client. keys live as long as a session.
func NewClient(redisClient *redis.Client, cfg config.AdminerConfig, ttl time.Duration) *Client {
	return &Client{redis: redisClient, cfg: cfg, ttl: ttl}
}

// RedirectURL parks the credentials under a fresh one-time key and returns
// the Adminer URL carrying it.
func (c *Client) RedirectURL(ctx context.Context) (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate adminer key: %w", err)
	}
	key := hex.EncodeToString(buf)

	creds, err := json.Marshal(Credentials{
		Server:   c.cfg.Server,
		Username: c.cfg.Username,
		Password: c.cfg.Password,
		Database: c.cfg.Database,
	})
	if err != nil {
		return "", fmt.Errorf("marshal adminer credentials: %w", err)
	}
	if err := c.redis.Set(ctx, "adminer:"+key, creds, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("cache adminer credentials: %w", err)
	}

	target, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse adminer url: %w", err)
	}
	query := target.Query()
	query.Set("pgsql", "")
	query.Set("server", c.cfg.Server)
	query.Set("username", c.cfg.Username)
	query.Set("db", c.cfg.Database)
	query.Set("key", key)
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// Pull fetches and deletes the credentials for a one-time key.
func (c *Client) Pull(ctx context.Context, key string) (*Credentials, error) {
	raw, err := c.redis.GetDel(ctx, "adminer:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pull adminer credentials: %w", err)
	}
	creds := &Credentials{}
	if err := json.Unmarshal([]byte(raw), creds); err != nil {
		return nil, fmt.Errorf("decode adminer credentials: %w", err)
	}
	return creds, nil
}
