package ash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// UnifiedProof is the output of BuildProofUnified: the proof itself plus
// the scope and chain hashes a caller must transmit alongside it so a
// verifier can recompute and compare them (spec §4.6, v2.3).
type UnifiedProof struct {
	Proof     string
	ScopeHash string
	ChainHash string
}

// HashProof returns hex(SHA-256(prev)), the chain-link hash of a previous
// proof string (spec §4.6, v2.3).
func HashProof(prev string) string {
	sum := sha256.Sum256([]byte(prev))
	return hex.EncodeToString(sum[:])
}

// BuildProofUnified computes the v2.3 unified proof: the scoped projection
// of payload (not the full payload) feeds the body hash, an optional scope
// hash commits to which fields were protected, and an optional chain hash
// links this proof to a prior one. payload is a raw JSON document string.
//
// Field order in the HMAC message is fixed regardless of which optional
// fields are empty: timestamp, binding, body_hash, scope_hash, chain_hash.
func BuildProofUnified(clientSecret, timestamp, binding, payload string, scope []string, previousProof string) (UnifiedProof, error) {
	if clientSecret == "" {
		return UnifiedProof{}, newError(ErrMalformedRequest, "client secret must not be empty")
	}
	if binding == "" {
		return UnifiedProof{}, newError(ErrMalformedRequest, "binding must not be empty")
	}

	var decoded any
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return UnifiedProof{}, newError(ErrCanonicalizationFailed, "invalid JSON payload")
	}

	scoped, err := ExtractScoped(decoded, scope)
	if err != nil {
		return UnifiedProof{}, err
	}
	scopedJSON, err := marshalCanonical(scoped)
	if err != nil {
		return UnifiedProof{}, err
	}
	bodyHash := HashBody(scopedJSON)

	scopeHash := ""
	if len(scope) > 0 {
		scopeHash = HashBody(strings.Join(scope, ","))
	}

	chainHash := ""
	if previousProof != "" {
		chainHash = HashProof(previousProof)
	}

	keyBytes, err := hex.DecodeString(clientSecret)
	if err != nil {
		return UnifiedProof{}, newError(ErrMalformedRequest, "client secret must be hex-encoded")
	}
	proof := hmacUnified(keyBytes, timestamp, binding, bodyHash, scopeHash, chainHash)

	return UnifiedProof{Proof: proof, ScopeHash: scopeHash, ChainHash: chainHash}, nil
}

// VerifyProofUnified re-derives and compares the scope hash, chain hash,
// and proof itself, each under §4.1's constant-time rule. A mismatch
// anywhere returns false; the function never reports which sub-check
// failed, denying an attacker an oracle.
func VerifyProofUnified(nonce, contextID, binding, timestamp, payload, clientProof string, scope []string, scopeHash string, previousProof, chainHash string) bool {
	if len(scope) > 0 {
		recomputedScopeHash := HashBody(strings.Join(scope, ","))
		if !EqualString(recomputedScopeHash, scopeHash) {
			return false
		}
	}

	if previousProof != "" {
		recomputedChainHash := HashProof(previousProof)
		if !EqualString(recomputedChainHash, chainHash) {
			return false
		}
	}

	clientSecret, err := DeriveClientSecret(nonce, contextID, binding)
	if err != nil {
		return false
	}

	rebuilt, err := BuildProofUnified(clientSecret, timestamp, binding, payload, scope, previousProof)
	if err != nil {
		return false
	}
	return EqualString(rebuilt.Proof, clientProof)
}

func hmacUnified(key []byte, timestamp, binding, bodyHash, scopeHash, chainHash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("|"))
	mac.Write([]byte(binding))
	mac.Write([]byte("|"))
	mac.Write([]byte(bodyHash))
	mac.Write([]byte("|"))
	mac.Write([]byte(scopeHash))
	mac.Write([]byte("|"))
	mac.Write([]byte(chainHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// marshalCanonical serializes a decoded JSON value (as produced by the
// standard decoder with UseNumber) through the canonical-JSON writer, so
// the scoped projection that feeds the body hash obeys the same
// determinism rules as CanonicalizeJSON.
func marshalCanonical(v any) (string, error) {
	var sb strings.Builder
	if err := writeCanonicalValue(&sb, v, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}
