// Package bus fans signal results out to independent consumers.
package bus

import (
	"context"
	"log"
	"sync"

	"srsignals/internal/model"
)

// Filter selects the results a subscriber receives. nil accepts all.
type Filter func(model.SignalResult) bool

// NonZero passes only bullish or bearish results.
func NonZero(r model.SignalResult) bool { return r.Signal != model.SignalNone }

type subscriber struct {
	name   string
	ch     chan model.SignalResult
	filter Filter
}

// FanOut delivers every published result to each subscriber channel. A full
// subscriber channel drops the result for that subscriber only, so one slow
// consumer never blocks the pipeline.
type FanOut struct {
	mu      sync.RWMutex
	subs    []subscriber
	bufSize int
	closed  bool

	// OnDrop is called with the subscriber name when a result is dropped.
	OnDrop func(subscriber string)
}

// New creates a FanOut whose subscriber channels hold bufSize results.
func New(bufSize int) *FanOut {
	return &FanOut{bufSize: bufSize}
}

// Subscribe registers a named consumer and returns its channel. The channel
// is closed by Close.
func (f *FanOut) Subscribe(name string, filter Filter) <-chan model.SignalResult {
	ch := make(chan model.SignalResult, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, subscriber{name: name, ch: ch, filter: filter})
	return ch
}

// Publish offers r to every subscriber without blocking. It returns the
// number of subscribers that received it.
func (f *FanOut) Publish(r model.SignalResult) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0
	}
	delivered := 0
	for _, s := range f.subs {
		if s.filter != nil && !s.filter(r) {
			continue
		}
		select {
		case s.ch <- r:
			delivered++
		default:
			if f.OnDrop != nil {
				f.OnDrop(s.name)
			} else {
				log.Printf("[bus] subscriber %s full, dropping %s #%d", s.name, r.Key(), r.Index)
			}
		}
	}
	return delivered
}

// Run publishes everything from input until ctx is cancelled or input
// closes, then closes all subscriber channels.
func (f *FanOut) Run(ctx context.Context, input <-chan model.SignalResult) {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-input:
			if !ok {
				return
			}
			f.Publish(r)
		}
	}
}

// Close closes every subscriber channel. It is safe to call more than once.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, s := range f.subs {
		close(s.ch)
	}
}

// ChannelStat reports the fill of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns the fill of every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.subs))
	for i, s := range f.subs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
