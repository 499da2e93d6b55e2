package middleware_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/persistence/middleware"
)

func TestCipher_SealOpen(t *testing.T) {
	c, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("postgres://user:secret@db/analytics"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	again, err := c.Seal([]byte("postgres://user:secret@db/analytics"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "postgres://user:secret@db/analytics", string(plain))
}

func TestCipher_Rotation(t *testing.T) {
	oldKey := generateKey(t)
	old, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	sealed, err := old.Seal([]byte("sqlite:///tmp/kb.db"))
	require.NoError(t, err)

	rotated, err := middleware.NewCipher(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	plain, err := rotated.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/kb.db", string(plain))

	stranger, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = stranger.Open(sealed)
	assert.Error(t, err)
}

func TestCipher_Rejects(t *testing.T) {
	_, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	c, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = c.Open("not base64!")
	assert.Error(t, err)
	_, err = c.Open(strings.Repeat("A", 8))
	assert.Error(t, err)
}
