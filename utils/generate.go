// utils/generate.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	GameCodeBytes     = 4
	SessionTokenBytes = 32
)

// GenerateGameCode returns a random 8-character uppercase hex join code.
// Uniqueness is the caller's problem (regenerate on collision).
func GenerateGameCode() string {
	return strings.ToUpper(randomHex(GameCodeBytes))
}

// GenerateSessionToken returns a random 64-character hex bearer token.
func GenerateSessionToken() string {
	return randomHex(SessionTokenBytes)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	// crypto/rand.Read only fails if the OS entropy source is broken, at
	// which point there is nothing sensible to do but stop.
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
