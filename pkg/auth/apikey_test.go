package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticate_PlainKey(t *testing.T) {
	a := New("secret-key")
	require.True(t, a.Enabled())

	r := httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-API-Key", "secret-key")
	assert.NoError(t, a.Authenticate(r))

	r = httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-API-Key", "wrong-key")
	assert.ErrorIs(t, a.Authenticate(r), ErrInvalidKey)

	r = httptest.NewRequest("GET", "/api/health", nil)
	assert.ErrorIs(t, a.Authenticate(r), ErrMissingKey)
}

func TestAuthenticate_BearerToken(t *testing.T) {
	a := New("secret-key")

	r := httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("Authorization", "Bearer secret-key")
	assert.NoError(t, a.Authenticate(r))

	r = httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.ErrorIs(t, a.Authenticate(r), ErrMissingKey)
}

func TestAuthenticate_HeaderPrecedence(t *testing.T) {
	a := New("secret-key")

	// X-API-Key wins over Authorization when both are present.
	r := httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-API-Key", "wrong")
	r.Header.Set("Authorization", "Bearer secret-key")
	assert.ErrorIs(t, a.Authenticate(r), ErrInvalidKey)
}

func TestAuthenticate_BcryptHashedKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	a := New(string(hash))
	require.True(t, a.Enabled())

	r := httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-API-Key", "secret-key")
	assert.NoError(t, a.Authenticate(r))

	r = httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-API-Key", "wrong-key")
	assert.ErrorIs(t, a.Authenticate(r), ErrInvalidKey)
}

func TestAuthenticate_Disabled(t *testing.T) {
	a := New("")
	assert.False(t, a.Enabled())

	// No key presented, still accepted.
	r := httptest.NewRequest("GET", "/api/health", nil)
	assert.NoError(t, a.Authenticate(r))
}

func TestExtractKey(t *testing.T) {
	assert.Equal(t, "k1", ExtractKey("k1", ""))
	assert.Equal(t, "k2", ExtractKey("", "Bearer k2"))
	assert.Equal(t, "k1", ExtractKey("k1", "Bearer k2"))
	assert.Equal(t, "", ExtractKey("", "Basic abc"))
	assert.Equal(t, "", ExtractKey("", ""))
}
