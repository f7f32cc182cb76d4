// Package pool provides sync.Pool-backed byte buffer reuse for the demo
// server's request-body reads, adapted from the teacher's
// internal/pool. ASH has no long-lived event struct to pool, so only the
// buffer pool survives the transplant — but the hit/miss metrics and
// size-capping discipline are carried over unchanged.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/slyt3/ash/internal/assert"
)

// Metrics tracks buffer pool use with hit/miss counters. BufferHits counts
// every GetBuffer call; BufferMisses counts the calls for which sync.Pool
// had to allocate a new buffer, so BufferHits - BufferMisses is the number
// of reused buffers.
type Metrics struct {
	BufferHits   uint64
	BufferMisses uint64
}

var globalMetrics Metrics

// GetMetrics returns a snapshot of current pool metrics. Safe for
// concurrent access.
func GetMetrics() Metrics {
	return Metrics{
		BufferHits:   atomic.LoadUint64(&globalMetrics.BufferHits),
		BufferMisses: atomic.LoadUint64(&globalMetrics.BufferMisses),
	}
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		atomic.AddUint64(&globalMetrics.BufferMisses, 1)
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// maxBufferSize bounds how large a buffer can grow and still be pooled, so
// one outsized canonicalization doesn't inflate every future Get.
const maxBufferSize = 1024 * 1024

// GetBuffer acquires a bytes.Buffer from the pool, reusing a returned
// buffer when one is available; new buffers start with 4KB capacity. Always defer
// PutBuffer to avoid leaks.
func GetBuffer() *bytes.Buffer {
	if err := assert.Check(bufferPool.New != nil, "bufferPool.New must be defined"); err != nil {
		return bytes.NewBuffer(nil)
	}
	atomic.AddUint64(&globalMetrics.BufferHits, 1)
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer returns a buffer to the pool after resetting it. Safe to call
// with nil. Buffers that grew past maxBufferSize are dropped instead of
// pooled, to prevent unbounded memory bloat from a single oversized
// canonicalization.
func PutBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if b.Cap() > maxBufferSize {
		return
	}
	if err := assert.Check(b.Cap() <= maxBufferSize*2, "buffer grew dangerously large: cap=%d", b.Cap()); err != nil {
		return
	}
	b.Reset()
	bufferPool.Put(b)
}
