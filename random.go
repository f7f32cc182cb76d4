package ash

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// contextIDPrefix is prepended to every generated context ID.
const contextIDPrefix = "ash_"

// GenerateNonce draws n bytes from a cryptographically secure source and
// returns them lowercase-hex encoded. A caller holding the nonce is the
// server; it is never transmitted to the client after the handshake.
func GenerateNonce(n int) (string, error) {
	if n <= 0 {
		return "", newError(ErrMalformedRequest, "nonce byte length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ash: reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateContextID returns "ash_" followed by 32 hex characters (16
// random bytes), the canonical ContextId shape from spec §4.7. Any
// non-empty string is acceptable to the rest of the core; this is simply
// the recommended generator.
func GenerateContextID() (string, error) {
	hexPart, err := GenerateNonce(16)
	if err != nil {
		return "", err
	}
	return contextIDPrefix + hexPart, nil
}
