// Package token issues opaque refresh tokens. The raw value is handed to the
// client once; only its SHA-256 digest is stored.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// refreshBytes gives 64 URL-safe characters.
const refreshBytes = 48

// Refresh is a newly issued refresh token.
type Refresh struct {
	Raw    string
	Digest string
}

// NewRefresh returns a random refresh token together with its stored digest.
func NewRefresh() (Refresh, error) {
	b := make([]byte, refreshBytes)
	if _, err := rand.Read(b); err != nil {
		return Refresh{}, err
	}
	raw := base64.RawURLEncoding.EncodeToString(b)
	return Refresh{Raw: raw, Digest: Digest(raw)}, nil
}

// Digest is the stored form of a presented token. A blank token has no
// digest and never matches a stored row.
func Digest(raw string) string {
	if raw == "" {
		return ""
	}
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
