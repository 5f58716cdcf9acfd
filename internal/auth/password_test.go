package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerify(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("hunter22")
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	ok, err := h.Verify("hunter22", hash)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", hash)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_Salted(t *testing.T) {
	h := NewPasswordHasher()

	a, err := h.Hash("hunter22")
	assert.NoError(t, err)
	b, err := h.Hash("hunter22")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_MalformedHash(t *testing.T) {
	h := NewPasswordHasher()

	_, err := h.Verify("hunter22", "not-an-encoded-hash")
	assert.Error(t, err)
}
