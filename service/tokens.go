package service

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/oauth2"
)

// newVerifier returns a fresh PKCE verifier: 32 bytes from a CSPRNG,
// URL-safe base64 encoded. Entropy is never reused across calls.
func newVerifier() string {
	return oauth2.GenerateVerifier()
}

// challengeOf derives the S256 code challenge from a verifier.
func challengeOf(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// newState returns a 32-byte random state nonce, hex encoded.
func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func newSessionId() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
