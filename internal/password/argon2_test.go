package password

import (
	"testing"

	"github.com/inmanturbo/freestack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() *Hasher {
	return NewHasher(config.SecurityConfig{
		Argon2Time:      1,
		Argon2Memory:    8 * 1024,
		Argon2Threads:   1,
		Argon2KeyLength: 32,
	})
}

func TestHashAndCompare(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "correct horse battery staple"))
	assert.ErrorIs(t, h.Compare(hash, "wrong password"), ErrPasswordMismatch)
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("same password")
	require.NoError(t, err)
	second, err := h.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	h := testHasher()

	for _, hash := range []string{"", "plain", "$argon2id$v=19$garbage", "$bcrypt$x$y$z$w"} {
		assert.ErrorIs(t, h.Compare(hash, "anything"), ErrInvalidHash)
	}
}
