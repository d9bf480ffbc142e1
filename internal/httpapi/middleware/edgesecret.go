package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/inmanturbo/freestack/internal/httpapi"
)

// RequireEdgeSecret guards internal edge endpoints with a shared secret
// delivered in the X-Edge-Secret header. The comparison is constant-time;
// an unconfigured secret rejects everything.
func RequireEdgeSecret(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Edge-Secret")
			if expected == "" || provided == "" ||
				subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
				httpapi.Error(w, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
