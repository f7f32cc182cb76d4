// Package ring provides a generic, thread-safe, fixed-capacity ring
// buffer, adapted from the teacher's event-submission buffer for reuse as
// the audit package's recent-verification history.
package ring

import (
	"errors"
	"sync"

	"github.com/slyt3/ash/internal/assert"
)

var ErrBufferFull = errors.New("ring buffer is full")
var ErrBufferEmpty = errors.New("ring buffer is empty")

// Buffer is a thread-safe, fixed-size ring buffer. Push evicts nothing and
// fails when full; PushEvicting overwrites the oldest entry instead.
type Buffer[T any] struct {
	data     []T
	capacity int
	head     int
	tail     int
	count    int
	mu       sync.Mutex
}

// New creates a ring buffer with the given capacity. Returns an error if
// capacity <= 0.
func New[T any](capacity int) (*Buffer[T], error) {
	if err := assert.Check(capacity > 0, "capacity must be positive"); err != nil {
		return nil, err
	}
	return &Buffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}, nil
}

// Push adds an item to the buffer. Returns ErrBufferFull if at capacity.
func (b *Buffer[T]) Push(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		return ErrBufferFull
	}
	if err := assert.InRange(b.tail, 0, b.capacity-1, "tail index"); err != nil {
		return err
	}

	b.data[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	return nil
}

// PushEvicting adds an item, evicting the oldest entry first if the buffer
// is already full — the mode the audit package's verification history
// uses, since it wants the most recent N outcomes, not backpressure.
func (b *Buffer[T]) PushEvicting(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.head = (b.head + 1) % b.capacity
		b.count--
	}
	b.data[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
}

// Pop removes and returns the oldest item. Returns ErrBufferEmpty if empty.
func (b *Buffer[T]) Pop() (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.count == 0 {
		return zero, ErrBufferEmpty
	}
	if err := assert.InRange(b.head, 0, b.capacity-1, "head index"); err != nil {
		return zero, err
	}
	item := b.data[b.head]
	b.head = (b.head + 1) % b.capacity
	b.count--
	return item, nil
}

// Snapshot returns a copy of the buffer's contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, 0, b.count)
	for i := 0; i < b.count; i++ {
		out = append(out, b.data[(b.head+i)%b.capacity])
	}
	return out
}

// IsFull reports whether the buffer is at capacity.
func (b *Buffer[T]) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == b.capacity
}

// IsEmpty reports whether the buffer holds no items.
func (b *Buffer[T]) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == 0
}

// Len returns the current item count.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}
