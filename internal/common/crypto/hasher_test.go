package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse battery", hash)
	assert.True(t, h.Verify(hash, "correct horse battery"))
}

func TestBcryptHasher_VerifyRejectsNearMisses(t *testing.T) {
	const secret = "correct horse battery"
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash(secret)
	require.NoError(t, err)

	flip := func(i int) string {
		b := []byte(secret)
		b[i] ^= 0x01
		return string(b)
	}

	tests := []struct {
		name     string
		password string
	}{
		{name: "first character differs", password: flip(0)},
		{name: "middle character differs", password: flip(len(secret) / 2)},
		{name: "last character differs", password: flip(len(secret) - 1)},
		{name: "prefix of secret", password: secret[:len(secret)-1]},
		{name: "short prefix", password: secret[:7]},
		{name: "secret plus one character", password: secret + "!"},
		{name: "empty", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, secret, tt.password)
			assert.False(t, h.Verify(hash, tt.password))
		})
	}
}

func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("password123")
	require.NoError(t, err)
	second, err := h.Hash("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasher_VerifyGarbageHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("not-a-hash", "password123"))
	assert.False(t, h.Verify("", ""))
}

func TestBcryptHasher_NeedsRehash(t *testing.T) {
	low := NewBcryptHasher(bcrypt.MinCost)
	high := NewBcryptHasher(bcrypt.MinCost + 1)

	hash, err := low.Hash("password123")
	require.NoError(t, err)

	assert.False(t, low.NeedsRehash(hash))
	assert.True(t, high.NeedsRehash(hash))
	assert.False(t, high.NeedsRehash("garbage"))
}

func TestNewBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, 12, NewBcryptHasher(0).Cost())
	assert.Equal(t, 12, NewBcryptHasher(99).Cost())
}

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret(32)
	require.NoError(t, err)
	b, err := RandomSecret(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		SHA256Hex("hello"),
	)
}
