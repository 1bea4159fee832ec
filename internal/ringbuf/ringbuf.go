// Package ringbuf provides a lock-free single-producer single-consumer ring
// of finalized bars between an ingest source and the live evaluator.
package ringbuf

import (
	"context"
	"sync/atomic"
	"time"

	"srsignals/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is an SPSC ring of bars. Capacity is a power of two.
type Ring struct {
	buf  []model.Bar
	mask uint64

	_pad0 [cacheLine]byte
	head  atomic.Uint64 // producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // consumer
	_pad2 [cacheLine]byte

	overflow atomic.Uint64
	done     atomic.Bool
}

// New creates a ring. capacity is rounded up to the next power of two, minimum 2.
func New(capacity int) *Ring {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring{
		buf:  make([]model.Bar, n),
		mask: uint64(n - 1),
	}
}

// Push appends b. It returns false and counts an overflow when the ring is full.
func (r *Ring) Push(b model.Bar) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}
	r.buf[head&r.mask] = b
	r.head.Store(head + 1)
	return true
}

// PushWait retries Push until it succeeds or ctx ends. Each failed attempt
// still counts as an overflow.
func (r *Ring) PushWait(ctx context.Context, b model.Bar, backoff time.Duration) error {
	for !r.Push(b) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil
}

// Pop removes the oldest bar. ok is false when the ring is empty.
func (r *Ring) Pop() (model.Bar, bool) {
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return model.Bar{}, false
	}
	b := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return b, true
}

// CloseProducer marks the end of input. Drain returns once the ring empties.
func (r *Ring) CloseProducer() { r.done.Store(true) }

// Drain pops bars into fn until ctx ends or the producer closed and the ring
// is empty. It sleeps for idle whenever the ring is empty.
func (r *Ring) Drain(ctx context.Context, idle time.Duration, fn func(model.Bar)) error {
	for {
		b, ok := r.Pop()
		if ok {
			fn(b)
			continue
		}
		if r.done.Load() && r.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idle):
		}
	}
}

// Len returns the number of queued bars.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Overflow returns the number of rejected pushes.
func (r *Ring) Overflow() uint64 {
	return r.overflow.Load()
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
