package pool

import "testing"

func TestGetBuffer_ReturnsEmptyResettableBuffer(t *testing.T) {
	b := GetBuffer()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got length %d", b.Len())
	}
	b.WriteString("hello")
	PutBuffer(b)

	b2 := GetBuffer()
	if b2.Len() != 0 {
		t.Fatalf("expected reused buffer to be reset, got length %d", b2.Len())
	}
	PutBuffer(b2)
}

func TestPutBuffer_NilIsNoOp(t *testing.T) {
	PutBuffer(nil)
}

func TestPutBuffer_DropsOversizedBuffers(t *testing.T) {
	before := GetMetrics()

	b := GetBuffer()
	b.Grow(maxBufferSize + 1)
	PutBuffer(b)

	// Pull buffers until we're confident we didn't get the oversized one
	// back; this is a best-effort check since sync.Pool offers no
	// enumeration guarantee.
	for i := 0; i < 8; i++ {
		got := GetBuffer()
		if got.Cap() > maxBufferSize {
			t.Fatalf("oversized buffer was returned to the pool")
		}
		PutBuffer(got)
	}

	after := GetMetrics()
	if after.BufferHits < before.BufferHits {
		t.Fatalf("hit count should never decrease")
	}
}

func TestGetMetrics_TracksHitsAndMisses(t *testing.T) {
	before := GetMetrics()
	b := GetBuffer()
	PutBuffer(b)
	after := GetMetrics()

	if after.BufferHits <= before.BufferHits && after.BufferMisses <= before.BufferMisses {
		t.Fatalf("expected either hits or misses to increase: before=%+v after=%+v", before, after)
	}
}
