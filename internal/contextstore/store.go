package contextstore

import (
	"errors"

	"github.com/slyt3/ash"
)

// ErrNotFound is returned by Get and Consume when a context ID is unknown.
var ErrNotFound = errors.New("contextstore: context not found")

// ErrAlreadyConsumed is returned by Consume when the context has already
// been used once — the replay-prevention half of the contract the core
// intentionally leaves to this collaborator.
var ErrAlreadyConsumed = errors.New("contextstore: context already consumed")

// ErrExpired is returned by Consume when the context has passed its
// ExpiresAt at the time of consumption.
var ErrExpired = errors.New("contextstore: context expired")

// Store is the storage contract shared by the in-memory and SQLite
// backends, mirroring the teacher's EventRepository split between a
// storage-agnostic interface and concrete implementations.
type Store interface {
	// Issue creates and persists a new context for binding, valid for
	// ttlMs milliseconds starting at nowMs.
	Issue(binding string, mode ash.Mode, nonce string, nowMs, ttlMs int64) (*StoredContext, error)

	// Get returns the stored context, or ErrNotFound.
	Get(contextID string) (*StoredContext, error)

	// Consume marks a context used at nowMs. It fails with ErrAlreadyConsumed
	// or ErrExpired rather than silently succeeding, so a caller can map
	// those onto ASH_REPLAY_DETECTED / ASH_CONTEXT_EXPIRED (spec §6).
	Consume(contextID string, nowMs int64) error

	// SweepExpired deletes contexts whose ExpiresAt is at or before nowMs
	// and that were never consumed, returning the count removed.
	SweepExpired(nowMs int64) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
