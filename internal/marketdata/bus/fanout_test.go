package bus

import (
	"context"
	"testing"
	"time"

	"srsignals/internal/model"
)

func result(i int, s model.Signal) model.SignalResult {
	return model.SignalResult{Symbol: "EURUSD", Interval: "1h", Index: i, Signal: s}
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe("sqlite", nil)
	out2 := fo.Subscribe("ws", nil)

	input := make(chan model.SignalResult, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- result(7, model.SignalBullish)
	for name, ch := range map[string]<-chan model.SignalResult{"out1": out1, "out2": out2} {
		select {
		case r := <-ch:
			if r.Index != 7 {
				t.Errorf("%s: got index %d", name, r.Index)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out", name)
		}
	}
}

func TestFanOut_Filter(t *testing.T) {
	fo := New(4)
	all := fo.Subscribe("all", nil)
	alerts := fo.Subscribe("alerts", NonZero)

	fo.Publish(result(1, model.SignalNone))
	fo.Publish(result(2, model.SignalBearish))

	if len(all) != 2 {
		t.Errorf("all: %d queued, want 2", len(all))
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts: %d queued, want 1", len(alerts))
	}
	if r := <-alerts; r.Index != 2 {
		t.Errorf("alerts got %d", r.Index)
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New(1)
	fast := fo.Subscribe("fast", nil)
	_ = fo.Subscribe("slow", nil)

	var dropped []string
	fo.OnDrop = func(name string) { dropped = append(dropped, name) }

	fo.Publish(result(1, model.SignalBullish))
	<-fast
	if n := fo.Publish(result(2, model.SignalBullish)); n != 1 {
		t.Errorf("delivered to %d, want 1", n)
	}
	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Errorf("dropped = %v", dropped)
	}

	stats := fo.ChannelStats()
	if len(stats) != 2 || stats[1].Name != "slow" || stats[1].Len != 1 || stats[1].Cap != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFanOut_CloseOnInputEnd(t *testing.T) {
	fo := New(2)
	out := fo.Subscribe("a", nil)
	input := make(chan model.SignalResult)
	close(input)
	fo.Run(context.Background(), input)

	if _, ok := <-out; ok {
		t.Error("subscriber channel should be closed")
	}
	if n := fo.Publish(result(1, model.SignalBullish)); n != 0 {
		t.Error("publish after close should deliver nothing")
	}
	if _, ok := <-fo.Subscribe("late", nil); ok {
		t.Error("late subscriber should get a closed channel")
	}
	fo.Close()
}
