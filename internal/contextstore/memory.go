package contextstore

import (
	"sync"

	"github.com/slyt3/ash"
)

// MemoryStore is a map-backed Store used by tests; the CLI's serve command
// always uses SQLiteStore.
type MemoryStore struct {
	mu       sync.Mutex
	contexts map[string]*StoredContext
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*StoredContext)}
}

func (s *MemoryStore) Issue(binding string, mode ash.Mode, nonce string, nowMs, ttlMs int64) (*StoredContext, error) {
	contextID, err := ash.GenerateContextID()
	if err != nil {
		return nil, err
	}

	sc := &StoredContext{
		ContextID: contextID,
		Binding:   binding,
		Mode:      mode,
		Nonce:     nonce,
		IssuedAt:  nowMs,
		ExpiresAt: nowMs + ttlMs,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[contextID] = sc
	return sc, nil
}

func (s *MemoryStore) Get(contextID string) (*StoredContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.contexts[contextID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sc
	return &copied, nil
}

func (s *MemoryStore) Consume(contextID string, nowMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.contexts[contextID]
	if !ok {
		return ErrNotFound
	}
	if sc.IsExpired(nowMs) {
		return ErrExpired
	}
	if sc.IsConsumed() {
		return ErrAlreadyConsumed
	}
	consumedAt := nowMs
	sc.ConsumedAt = &consumedAt
	return nil
}

func (s *MemoryStore) SweepExpired(nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sc := range s.contexts {
		if sc.IsExpired(nowMs) && !sc.IsConsumed() {
			delete(s.contexts, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
