package ash

import (
	"encoding/json"

	"github.com/ucarion/jcs"
)

// ScopedBodyHash is a convenience operation (spec §2 item 9) for callers
// that cannot run the full canonicalizer themselves — e.g. a thin FFI
// binding that only has a generic JSON-marshal call available. It applies
// ExtractScoped, then canonicalizes the projection via RFC 8785 JSON
// Canonicalization Scheme rather than this package's own writer, and
// returns hex(SHA-256(...)) of the result.
//
// This is deliberately a second canonicalization path, not a thin wrapper
// around CanonicalizeJSON: RFC 8785's number formatting (ECMAScript
// Number::toString) can fall back to scientific notation at extreme
// magnitudes, which CanonicalizeJSON's spec-mandated "never scientific
// notation" rule forbids. ScopedBodyHash trades that guarantee for a
// standards-track canonicalizer when a caller's payload is known not to
// contain such magnitudes — callers needing the stronger guarantee must
// use BuildProofUnified/ExtractScoped + CanonicalizeJSON directly.
func ScopedBodyHash(payload string, scope []string) (string, error) {
	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return "", newError(ErrCanonicalizationFailed, "invalid JSON payload")
	}

	scoped, err := ExtractScoped(decoded, scope)
	if err != nil {
		return "", err
	}

	// Round-trip the projection so it holds only the plain JSON types
	// (float64 numbers, map[string]any objects) that jcs.Format accepts.
	scoped, err = reencodeForJCS(scoped)
	if err != nil {
		return "", err
	}

	canonical, err := jcs.Format(scoped)
	if err != nil {
		return "", newError(ErrCanonicalizationFailed, "JCS formatting failed")
	}

	return HashBody(canonical), nil
}

// reencodeForJCS round-trips v through the standard marshal/unmarshal pair
// (the same two-step the teacher's CalculateEventHash performs), so the
// value handed to jcs.Format contains only types encoding/json produces
// when decoding without UseNumber, e.g. float64 for every number.
func reencodeForJCS(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, newError(ErrCanonicalizationFailed, "failed to normalize scoped payload")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newError(ErrCanonicalizationFailed, "failed to normalize scoped payload")
	}
	return out, nil
}
