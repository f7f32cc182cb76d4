package ash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// DeriveClientSecret computes hex(HMAC-SHA256(key=nonce, msg=contextID+"|"+binding))
// (spec §4.6, v2.1). A holder of only the derived secret for one
// (context_id, binding) pair cannot forge proofs for a different pair,
// since HMAC-SHA256 is a PRF keyed by the nonce.
func DeriveClientSecret(nonce, contextID, binding string) (string, error) {
	if nonce == "" {
		return "", newError(ErrMalformedRequest, "nonce must not be empty")
	}
	if contextID == "" {
		return "", newError(ErrMalformedRequest, "context id must not be empty")
	}
	if binding == "" {
		return "", newError(ErrMalformedRequest, "binding must not be empty")
	}
	mac := hmac.New(sha256.New, []byte(nonce))
	mac.Write([]byte(contextID))
	mac.Write([]byte("|"))
	mac.Write([]byte(binding))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// HashBody returns hex(SHA-256(canonicalBody)) — a 64 lowercase hex
// character BodyHash (spec §4.6, §6).
func HashBody(canonicalBody string) string {
	sum := sha256.Sum256([]byte(canonicalBody))
	return hex.EncodeToString(sum[:])
}

// BuildProofV21 computes hex(HMAC-SHA256(key=clientSecret, msg=timestamp+"|"+binding+"|"+bodyHash))
// (spec §4.6, v2.1).
func BuildProofV21(clientSecret, timestamp, binding, bodyHash string) (string, error) {
	if clientSecret == "" {
		return "", newError(ErrMalformedRequest, "client secret must not be empty")
	}
	if binding == "" {
		return "", newError(ErrMalformedRequest, "binding must not be empty")
	}
	keyBytes, err := hex.DecodeString(clientSecret)
	if err != nil {
		return "", newError(ErrMalformedRequest, "client secret must be hex-encoded")
	}
	mac := hmac.New(sha256.New, keyBytes)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("|"))
	mac.Write([]byte(binding))
	mac.Write([]byte("|"))
	mac.Write([]byte(bodyHash))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyProofV21 re-derives the client secret from nonce, rebuilds the
// proof, and constant-time compares it with clientProof (spec §4.6, v2.1).
// Returns false, never an error, on any mismatch or malformed input — the
// engine must not distinguish "wrong proof" from "bad input" via an
// observable error.
func VerifyProofV21(nonce, contextID, binding, timestamp, bodyHash, clientProof string) bool {
	secret, err := DeriveClientSecret(nonce, contextID, binding)
	if err != nil {
		return false
	}
	expected, err := BuildProofV21(secret, timestamp, binding, bodyHash)
	if err != nil {
		return false
	}
	return EqualString(expected, clientProof)
}
