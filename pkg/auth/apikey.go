// Package auth provides API key authentication for the gateway.
//
// The gateway authenticates whole requests against a single configured API
// key, presented either as an X-API-Key header or a Bearer token. The
// configured key may be stored as a bcrypt hash ($2a$/$2b$/$2y$ prefix) so
// the plain key never has to live in config files; plain keys are compared
// in constant time.
//
// Example Usage:
//
//	authenticator := auth.New("my-secret-key")
//	if err := authenticator.Authenticate(r); err != nil {
//	    // reject with 403
//	}
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Errors returned by Authenticate.
var (
	ErrMissingKey = errors.New("no API key provided")
	ErrInvalidKey = errors.New("invalid API key")
)

// Authenticator validates request API keys. It is immutable after
// construction and safe for concurrent use.
type Authenticator struct {
	key      string
	isHashed bool
	enabled  bool
}

// New returns an Authenticator for the configured key. An empty key disables
// authentication entirely; callers should log that loudly at startup.
func New(configuredKey string) *Authenticator {
	key := strings.TrimSpace(configuredKey)
	return &Authenticator{
		key:      key,
		isHashed: isBcryptHash(key),
		enabled:  key != "",
	}
}

// Enabled reports whether authentication is active.
func (a *Authenticator) Enabled() bool {
	return a.enabled
}

// Authenticate checks the request's API key. It accepts the key from the
// X-API-Key header or an Authorization: Bearer header, in that order.
func (a *Authenticator) Authenticate(r *http.Request) error {
	if !a.enabled {
		return nil
	}

	presented := ExtractKey(r.Header.Get("X-API-Key"), r.Header.Get("Authorization"))
	if presented == "" {
		return ErrMissingKey
	}

	if a.isHashed {
		if bcrypt.CompareHashAndPassword([]byte(a.key), []byte(presented)) != nil {
			return ErrInvalidKey
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(a.key), []byte(presented)) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// ExtractKey returns the first API key found among the supported carriers.
func ExtractKey(apiKeyHeader, authorizationHeader string) string {
	if apiKeyHeader != "" {
		return apiKeyHeader
	}
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimPrefix(authorizationHeader, "Bearer ")
	}
	return ""
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}
