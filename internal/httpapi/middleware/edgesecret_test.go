package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func callWithSecret(expected, provided string) int {
	handler := RequireEdgeSecret(expected)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/oauth/introspect", nil)
	if provided != "" {
		req.Header.Set("X-Edge-Secret", provided)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireEdgeSecret(t *testing.T) {
	assert.Equal(t, http.StatusOK, callWithSecret("s3cret", "s3cret"))
	assert.Equal(t, http.StatusForbidden, callWithSecret("s3cret", "wrong"))
	assert.Equal(t, http.StatusForbidden, callWithSecret("s3cret", ""))
	// An unconfigured secret never admits anyone.
	assert.Equal(t, http.StatusForbidden, callWithSecret("", ""))
	assert.Equal(t, http.StatusForbidden, callWithSecret("", "anything"))
}
