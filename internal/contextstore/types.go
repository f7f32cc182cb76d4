// Package contextstore is the server-side collaborator spec §9 deliberately
// excludes from the core: issuance, expiry, and one-time consumption of
// ASH contexts. The core's role ends at producing and comparing proof
// values; this package owns everything stateful around a context's
// lifecycle.
package contextstore

import "github.com/slyt3/ash"

// StoredContext is the server's record of one issued context, modeled on
// original_source's StoredContext (ash-core/src/types.rs) since spec.md's
// own DATA MODEL deliberately omits the store.
type StoredContext struct {
	ContextID  string
	Binding    string
	Mode       ash.Mode
	Nonce      string
	IssuedAt   int64 // milliseconds since epoch
	ExpiresAt  int64
	ConsumedAt *int64
}

// IsConsumed reports whether this context has already been used once.
func (c StoredContext) IsConsumed() bool {
	return c.ConsumedAt != nil
}

// IsExpired reports whether nowMs is at or past ExpiresAt.
func (c StoredContext) IsExpired(nowMs int64) bool {
	return nowMs >= c.ExpiresAt
}

// ContextPublicInfo is the subset of StoredContext safe to hand back to a
// client: never the nonce, never consumption state, since that's exactly
// the oracle the core's verify functions are built to deny (spec §9,
// "Error message hygiene").
type ContextPublicInfo struct {
	ContextID string
	Binding   string
	Mode      ash.Mode
	ExpiresAt int64
}

// Public projects a StoredContext down to its client-safe fields.
func (c StoredContext) Public() ContextPublicInfo {
	return ContextPublicInfo{
		ContextID: c.ContextID,
		Binding:   c.Binding,
		Mode:      c.Mode,
		ExpiresAt: c.ExpiresAt,
	}
}
