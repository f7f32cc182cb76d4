package audit

import (
	"github.com/slyt3/ash"
	"github.com/slyt3/ash/internal/ring"
)

// VerificationOutcome records the result of a single proof verification, for
// display in the demo server's /status endpoint and the ashctl tail command.
// It never stores the request payload or proof value itself — only the
// metadata needed to audit what was checked and whether it passed.
type VerificationOutcome struct {
	ContextID    string
	Binding      string
	Mode         ash.Mode
	ProofVersion string
	Pass         bool
	TimestampMs  int64
}

// VerificationRing is a bounded, most-recent-N history of verification
// outcomes. It wraps ring.Buffer's eviction mode: unlike the context store,
// a full history should drop its oldest entry rather than reject new ones.
type VerificationRing struct {
	buf *ring.Buffer[VerificationOutcome]
}

// NewVerificationRing creates a history retaining the most recent capacity
// outcomes.
func NewVerificationRing(capacity int) (*VerificationRing, error) {
	buf, err := ring.New[VerificationOutcome](capacity)
	if err != nil {
		return nil, err
	}
	return &VerificationRing{buf: buf}, nil
}

// Record appends an outcome, evicting the oldest entry if the history is
// already at capacity.
func (r *VerificationRing) Record(outcome VerificationOutcome) {
	r.buf.PushEvicting(outcome)
}

// Recent returns the recorded outcomes, oldest first.
func (r *VerificationRing) Recent() []VerificationOutcome {
	return r.buf.Snapshot()
}

// FailureCount reports how many of the currently retained outcomes failed
// verification.
func (r *VerificationRing) FailureCount() int {
	count := 0
	for _, o := range r.buf.Snapshot() {
		if !o.Pass {
			count++
		}
	}
	return count
}
