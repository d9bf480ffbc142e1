package token

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewSignerFromKeys("https://freestack.test", key, &key.PublicKey)
}

func TestSignParseRoundTrip(t *testing.T) {
	s := testSigner(t)
	expiry := time.Now().Add(time.Hour).UTC()
	tok := &Token{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Name:      "edge-ticket",
		Scopes:    []string{"edge"},
		CreatedAt: time.Now().UTC(),
		Expiry:    &expiry,
	}

	bearer, err := s.Sign(tok)
	require.NoError(t, err)

	tokenID, userID, err := s.Parse(bearer)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, tokenID)
	assert.Equal(t, tok.UserID, userID)
}

func TestParseRejectsExpired(t *testing.T) {
	s := testSigner(t)
	expiry := time.Now().Add(-time.Minute).UTC()
	tok := &Token{ID: uuid.New(), UserID: uuid.New(), CreatedAt: time.Now().UTC(), Expiry: &expiry}

	bearer, err := s.Sign(tok)
	require.NoError(t, err)

	_, _, err = s.Parse(bearer)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	tok := &Token{ID: uuid.New(), UserID: uuid.New(), CreatedAt: time.Now().UTC()}

	bearer, err := testSigner(t).Sign(tok)
	require.NoError(t, err)

	_, _, err = testSigner(t).Parse(bearer)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsGarbage(t *testing.T) {
	s := testSigner(t)
	for _, bearer := range []string{"", "junk", "a.b.c"} {
		_, _, err := s.Parse(bearer)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}
