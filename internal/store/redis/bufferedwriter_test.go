package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"srsignals/internal/model"
)

type fakePublisher struct {
	mu   sync.Mutex
	fail bool
	got  []int
}

func (f *fakePublisher) Publish(_ context.Context, r model.SignalResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errFail
	}
	f.got = append(f.got, r.Index)
	return nil
}

func (f *fakePublisher) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakePublisher) indices() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.got...)
}

func sig(i int) model.SignalResult {
	return model.SignalResult{Symbol: "EURUSD", Interval: "1h", Index: i, Signal: model.SignalBullish}
}

var _ model.SignalPublisher = (*BufferedWriter)(nil)
var _ model.SignalPublisher = (*Writer)(nil)

func TestBufferedWriter_PassThrough(t *testing.T) {
	pub := &fakePublisher{}
	cb, _ := newTestBreaker(1, time.Second)
	bw := NewBufferedWriter(context.Background(), pub, cb, 4)

	if err := bw.Publish(context.Background(), sig(1)); err != nil {
		t.Fatal(err)
	}
	if err := bw.Publish(context.Background(), model.SignalResult{Index: 2}); err != nil {
		t.Fatal(err)
	}
	if got := pub.indices(); len(got) != 1 || got[0] != 1 {
		t.Errorf("published %v, want [1]", got)
	}
	if bw.PendingCount() != 0 {
		t.Errorf("pending = %d", bw.PendingCount())
	}
}

func TestBufferedWriter_BuffersAndRecovers(t *testing.T) {
	pub := &fakePublisher{fail: true}
	cb, clk := newTestBreaker(1, time.Second)
	bw := NewBufferedWriter(context.Background(), pub, cb, 8)
	ctx := context.Background()

	if err := bw.Publish(ctx, sig(1)); !errors.Is(err, errFail) {
		t.Fatalf("first publish: got %v", err)
	}
	if err := bw.Publish(ctx, sig(2)); err != nil {
		t.Fatalf("open breaker should buffer silently, got %v", err)
	}
	if bw.PendingCount() != 2 {
		t.Fatalf("pending = %d, want 2", bw.PendingCount())
	}

	pub.setFail(false)
	clk.advance(2 * time.Second)
	if err := bw.Publish(ctx, sig(3)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for bw.PendingCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	for len(pub.indices()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := pub.indices()
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("published %v, want %v", got, want)
			break
		}
	}
}

func TestBufferedWriter_DropsOldest(t *testing.T) {
	pub := &fakePublisher{fail: true}
	cb, _ := newTestBreaker(1, time.Hour)
	bw := NewBufferedWriter(context.Background(), pub, cb, 2)
	drops := 0
	bw.OnDrop = func() { drops++ }

	for i := 1; i <= 3; i++ {
		bw.Publish(context.Background(), sig(i))
	}
	if bw.PendingCount() != 2 || drops != 1 {
		t.Fatalf("pending=%d drops=%d", bw.PendingCount(), drops)
	}

	if n := bw.Flush(context.Background()); n != 0 {
		t.Errorf("flush with open breaker sent %d", n)
	}
	if err := bw.Close(context.Background()); err == nil {
		t.Error("expected close error with pending signals")
	}

	bw.mu.Lock()
	first := bw.buffer[0].Index
	bw.mu.Unlock()
	if first != 2 {
		t.Errorf("oldest kept = %d, want 2", first)
	}
}

func TestBufferedWriter_Run(t *testing.T) {
	pub := &fakePublisher{}
	cb, _ := newTestBreaker(3, time.Second)
	bw := NewBufferedWriter(context.Background(), pub, cb, 8)

	ch := make(chan model.SignalResult, 4)
	for i := 0; i < 4; i++ {
		ch <- sig(i)
	}
	close(ch)
	bw.Run(context.Background(), ch)

	if got := pub.indices(); len(got) != 4 {
		t.Errorf("published %v", got)
	}
}
