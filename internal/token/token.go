// Package token generates and parses attendance session tokens.
package token

import (
	crand "crypto/rand"
	"encoding/base64"
	"net/url"
)

// Generate produces a new session token from n random bytes. The encoding is
// URL-safe so the token can be embedded directly in a scannable link.
func Generate(n int) (string, error) {
	// n is the number of bytes, not characters
	b := make([]byte, n)
	_, err := crand.Read(b)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// FromScannedInput extracts the token from whatever a QR decoder hands back.
// Scanners return either the bare token or the full link the QR encodes; for
// a link the token lives in the 'token' query parameter.
func FromScannedInput(input string) string {
	if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
		if t := u.Query().Get("token"); t != "" {
			return t
		}
	}
	return input
}
