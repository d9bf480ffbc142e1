package middleware

import (
	"context"
	"net/http"

	"github.com/inmanturbo/freestack/internal/httpapi"
	"github.com/inmanturbo/freestack/internal/token"
)

// TokenValidator defines the capabilities required to validate bearers.
type TokenValidator interface {
	Validate(ctx context.Context, bearer string) (*token.Token, error)
}

type tokenContextKey struct{}

// BearerAuth authenticates requests by personal access token.
type BearerAuth struct {
	validator TokenValidator
}

// NewBearerAuth creates a new instance.
func NewBearerAuth(validator TokenValidator) *BearerAuth {
	return &BearerAuth{validator: validator}
}

// RequireToken ensures incoming requests possess a valid, unrevoked,
// unexpired bearer token.
func (a *BearerAuth) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := httpapi.BearerToken(r)
		if bearer == "" {
			httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		t, err := a.validator.Validate(r.Context(), bearer)
		if err != nil {
			httpapi.Error(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey{}, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext extracts the token stored by RequireToken.
func TokenFromContext(ctx context.Context) (*token.Token, bool) {
	t, ok := ctx.Value(tokenContextKey{}).(*token.Token)
	return t, ok && t != nil
}
