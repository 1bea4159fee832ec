package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"srsignals/internal/model"
)

const defaultMaxBuffered = 10000

// BufferedWriter routes publishes through a circuit breaker. Results that
// fail or are rejected while the breaker is open are held in a bounded
// local buffer and replayed once the breaker closes.
type BufferedWriter struct {
	pub model.SignalPublisher
	cb  *CircuitBreaker
	ctx context.Context

	mu     sync.Mutex
	buffer []model.SignalResult
	maxBuf int

	flushMu sync.Mutex

	OnBuffer func()          // a result was buffered
	OnDrop   func()          // the oldest buffered result was discarded
	OnFlush  func(count int) // buffered results were replayed
}

// NewBufferedWriter wraps pub. ctx bounds background flushes.
func NewBufferedWriter(ctx context.Context, pub model.SignalPublisher, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = defaultMaxBuffered
	}
	bw := &BufferedWriter{
		pub:    pub,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.SignalResult, 0, 64),
		maxBuf: maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bw.Flush(bw.ctx)
		}
	}
	return bw
}

// Publish sends r through the breaker. An open breaker buffers r and
// returns nil; a failed publish buffers r and returns the error.
func (bw *BufferedWriter) Publish(ctx context.Context, r model.SignalResult) error {
	if r.Signal == model.SignalNone {
		return nil
	}
	err := bw.cb.Execute(func() error { return bw.pub.Publish(ctx, r) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCircuitOpen):
		bw.push(r)
		return nil
	default:
		bw.push(r)
		return err
	}
}

// Run publishes every result from ch until ctx is cancelled or ch closes,
// then makes a final flush attempt.
func (bw *BufferedWriter) Run(ctx context.Context, ch <-chan model.SignalResult) {
	defer func() {
		if err := bw.Close(context.Background()); err != nil {
			log.Printf("[buffered-writer] %v", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			if err := bw.Publish(ctx, r); err != nil {
				log.Printf("[buffered-writer] publish %s: %v", r.Key(), err)
			}
		}
	}
}

func (bw *BufferedWriter) push(r model.SignalResult) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if len(bw.buffer) >= bw.maxBuf {
		bw.buffer = bw.buffer[1:]
		if bw.OnDrop != nil {
			bw.OnDrop()
		}
	}
	bw.buffer = append(bw.buffer, r)
	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// requeue puts unsent results back in front of anything buffered meanwhile.
func (bw *BufferedWriter) requeue(rest []model.SignalResult) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	merged := append(append(make([]model.SignalResult, 0, len(rest)+len(bw.buffer)), rest...), bw.buffer...)
	if over := len(merged) - bw.maxBuf; over > 0 {
		merged = merged[over:]
		if bw.OnDrop != nil {
			for i := 0; i < over; i++ {
				bw.OnDrop()
			}
		}
	}
	bw.buffer = merged
}

// Flush replays buffered results in order through the breaker and stops at
// the first failure. It returns the number replayed.
func (bw *BufferedWriter) Flush(ctx context.Context) int {
	bw.flushMu.Lock()
	defer bw.flushMu.Unlock()

	bw.mu.Lock()
	pending := bw.buffer
	bw.buffer = make([]model.SignalResult, 0, 64)
	bw.mu.Unlock()
	if len(pending) == 0 {
		return 0
	}

	sent := 0
	for i := range pending {
		r := pending[i]
		if err := bw.cb.Execute(func() error { return bw.pub.Publish(ctx, r) }); err != nil {
			bw.requeue(pending[i:])
			break
		}
		sent++
	}

	log.Printf("[buffered-writer] flushed %d/%d buffered signals", sent, len(pending))
	if bw.OnFlush != nil {
		bw.OnFlush(sent)
	}
	return sent
}

// PendingCount returns the number of buffered results.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Close flushes what it can and reports how many results were left behind.
func (bw *BufferedWriter) Close(ctx context.Context) error {
	bw.Flush(ctx)
	if n := bw.PendingCount(); n > 0 {
		return fmt.Errorf("%d signals still buffered at close", n)
	}
	return nil
}
