package ash

import (
	"crypto/sha256"
	"encoding/base64"
)

// ashVersionV1 is the domain-separation prefix for the legacy v1 proof,
// carried over unchanged from original_source's ASH_VERSION constant.
const ashVersionV1 = "ASHv1"

// BuildProofV1 computes the legacy signature token (spec §4.6, v1):
// SHA-256 of "ASHv1", mode, binding, contextID, and the nonce (if present)
// each followed by LF, with the canonical payload appended without a
// trailing LF — Base64URL-encoded without padding.
func BuildProofV1(mode Mode, binding, contextID string, nonce *string, canonicalPayload string) (string, error) {
	if binding == "" {
		return "", newError(ErrMalformedRequest, "binding must not be empty")
	}
	if contextID == "" {
		return "", newError(ErrMalformedRequest, "context id must not be empty")
	}

	var buf []byte
	buf = appendLine(buf, ashVersionV1)
	buf = appendLine(buf, mode.String())
	buf = appendLine(buf, binding)
	buf = appendLine(buf, contextID)
	if nonce != nil {
		buf = appendLine(buf, *nonce)
	}
	buf = append(buf, canonicalPayload...)

	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

func appendLine(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, '\n')
	return buf
}

// VerifyProofV1 recomputes the v1 proof from its inputs and compares it to
// clientProof in constant time. Returns false (never an error) on mismatch.
func VerifyProofV1(mode Mode, binding, contextID string, nonce *string, canonicalPayload, clientProof string) bool {
	expected, err := BuildProofV1(mode, binding, contextID, nonce, canonicalPayload)
	if err != nil {
		return false
	}
	return EqualString(expected, clientProof)
}

// ProofV1Input is a structured wrapper around BuildProofV1's positional
// arguments, ported from original_source's BuildProofInput for callers that
// prefer to assemble the request in one value before computing the proof.
type ProofV1Input struct {
	Mode             Mode
	Binding          string
	ContextID        string
	Nonce            *string
	CanonicalPayload string
}

// Build computes the v1 proof for this input.
func (in ProofV1Input) Build() (string, error) {
	return BuildProofV1(in.Mode, in.Binding, in.ContextID, in.Nonce, in.CanonicalPayload)
}

// VerifyV1Input is a structured wrapper around a v1 proof comparison,
// ported from original_source's VerifyInput.
type VerifyV1Input struct {
	Expected string
	Actual   string
}

// Verify constant-time compares the two proofs.
func (in VerifyV1Input) Verify() bool {
	return EqualString(in.Expected, in.Actual)
}
