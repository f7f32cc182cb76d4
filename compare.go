package ash

import "crypto/subtle"

// Equal reports whether a and b are byte-identical, in time independent of
// where the first difference occurs. Length comparison is allowed to
// short-circuit (proof and hash lengths are public, per spec §4.1); every
// equal-length comparison still costs the same regardless of content.
//
// Use this for every comparison involving proofs, derived secrets, scope
// hashes, or chain hashes. Never compare those with ==.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EqualString is the string convenience form of Equal.
func EqualString(a, b string) bool {
	return Equal([]byte(a), []byte(b))
}
