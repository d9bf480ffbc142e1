package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/redis/go-redis/v9"
)

// RateLimiter applies fixed-window request limits backed by Redis.
type RateLimiter struct {
	redis     *redis.Client
	namespace string
}

// NewRateLimiter creates a new instance.
func NewRateLimiter(client *redis.Client, namespace string) *RateLimiter {
	return &RateLimiter{redis: client, namespace: namespace}
}

// Limit returns middleware allowing at most limit requests per window for
// each key produced by keyFn. Redis outages fail open.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:ratelimit:%s:%s", l.namespace, name, keyFn(r))

			count, err := l.redis.Incr(r.Context(), key).Result()
			if err == nil && count == 1 {
				l.redis.Expire(r.Context(), key, window)
			}
			if err == nil && count > int64(limit) {
				httpapi.Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
