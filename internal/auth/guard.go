// Package auth gates admin operations behind a single credential scheme:
// a base64-encoded user:pass pair carried in the Authorization header.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const basicPrefix = "Basic "

// Guard performs constant-time credential checks against the configured
// admin username and password. It stores only SHA-256 digests so the
// comparison length never depends on the secret.
type Guard struct {
	userDigest [sha256.Size]byte
	passDigest [sha256.Size]byte
}

// NewGuard creates a Guard for the given credentials.
func NewGuard(user, pass string) *Guard {
	return &Guard{
		userDigest: sha256.Sum256([]byte(user)),
		passDigest: sha256.Sum256([]byte(pass)),
	}
}

// Check reports whether the Authorization header carries the configured
// credentials. Missing, malformed, or mismatched headers all return false;
// the result never reveals which half of the pair was wrong, and the raw
// credential is never logged.
func (g *Guard) Check(header string) bool {
	if !strings.HasPrefix(header, basicPrefix) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(basicPrefix):])
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}

	// Hash both halves before comparing so the comparison is constant-time
	// regardless of input length, and combine the results with a bitwise AND
	// to avoid an early exit after the username check.
	userDigest := sha256.Sum256([]byte(user))
	passDigest := sha256.Sum256([]byte(pass))
	userOK := subtle.ConstantTimeCompare(userDigest[:], g.userDigest[:])
	passOK := subtle.ConstantTimeCompare(passDigest[:], g.passDigest[:])
	return userOK&passOK == 1
}
