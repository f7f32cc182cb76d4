// Package worker runs the background context-expiry sweep, adapted from
// the teacher's internal/ledger.Worker anchor loop: a bounded ticker
// goroutine with graceful shutdown instead of an unbounded for-select.
package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slyt3/ash/internal/assert"
	"github.com/slyt3/ash/internal/contextstore"
	"github.com/slyt3/ash/internal/logging"
)

// maxSweepTicks bounds the sweep loop so it cannot spin forever even under
// a ticker malfunction; at one tick per interval this comfortably outlasts
// any real process lifetime.
const maxSweepTicks = 1 << 30

// Sweeper periodically removes expired, unconsumed contexts from a
// contextstore.Store so long-running deployments don't accumulate
// unbounded state.
type Sweeper struct {
	store        contextstore.Store
	interval     time.Duration
	quitChan     chan struct{}
	sweptTotal   atomic.Uint64
	sweepRuns    atomic.Uint64
	wg           sync.WaitGroup
	closing      atomic.Bool
	shutdownOnce sync.Once
}

// NewSweeper creates a sweeper that checks store every interval.
func NewSweeper(store contextstore.Store, interval time.Duration) (*Sweeper, error) {
	if err := assert.Check(store != nil, "context store must not be nil"); err != nil {
		return nil, err
	}
	if err := assert.Check(interval > 0, "sweep interval must be positive"); err != nil {
		return nil, err
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		quitChan: make(chan struct{}),
	}, nil
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop()
	}()
}

// Stats returns the number of sweep runs performed and the cumulative
// count of contexts removed across all of them.
func (s *Sweeper) Stats() (runs, swept uint64) {
	return s.sweepRuns.Load(), s.sweptTotal.Load()
}

// Shutdown stops the sweep loop and waits up to timeout for it to exit.
func (s *Sweeper) Shutdown(timeout time.Duration) error {
	if err := assert.Check(timeout > 0, "shutdown timeout must be positive"); err != nil {
		return err
	}

	s.closing.Store(true)
	s.shutdownOnce.Do(func() {
		close(s.quitChan)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sweeper shutdown exceeded timeout after %s", timeout)
	}
}

func (s *Sweeper) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; i < maxSweepTicks; i++ {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.quitChan:
			return
		}
	}
	logging.Critical("sweep loop exceeded max ticks", logging.Fields{Component: "worker"})
}

func (s *Sweeper) runOnce() {
	removed, err := s.store.SweepExpired(time.Now().UnixMilli())
	s.sweepRuns.Add(1)
	if err != nil {
		logging.Error("context sweep failed", logging.Fields{Component: "worker", Error: err.Error()})
		return
	}
	if removed > 0 {
		s.sweptTotal.Add(uint64(removed))
		logging.Info(fmt.Sprintf("swept %d expired contexts", removed), logging.Fields{Component: "worker"})
	}
}
