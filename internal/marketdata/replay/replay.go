// Package replay emits stored bars in time order at a configurable speed so
// the live pipeline can be driven from history.
package replay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"srsignals/internal/model"
)

// maxGap caps the scaled sleep between two bars.
const maxGap = 5 * time.Second

// Series names one symbol@interval to replay.
type Series struct {
	Symbol   string
	Interval string
}

// Replayer reads bars through a model.BarReader and replays them.
type Replayer struct {
	reader model.BarReader
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Replayer.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader, sleep: sleepCtx}
}

// Run emits every bar of the given series at or after fromUnix into out,
// interleaved by timestamp. speed 1 is real time, 10 is ten times faster and
// 0 is as fast as possible. It returns the number of bars emitted.
func (r *Replayer) Run(ctx context.Context, series []Series, fromUnix int64, speed float64, out chan<- model.Bar) (int, error) {
	var all []model.Bar
	for _, s := range series {
		bars, err := r.reader.ReadBars(ctx, s.Symbol, s.Interval, fromUnix)
		if err != nil {
			return 0, fmt.Errorf("replay %s: %w", model.SeriesKey(s.Symbol, s.Interval), err)
		}
		all = append(all, bars...)
	}
	if len(all) == 0 {
		log.Println("[replay] no bars found")
		return 0, nil
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })
	log.Printf("[replay] loaded %d bars across %d series, speed=%.1fx", len(all), len(series), speed)

	var prevTS time.Time
	emitted := 0
	for _, b := range all {
		if speed > 0 && !prevTS.IsZero() {
			if gap := b.TS.Sub(prevTS); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > maxGap {
					scaled = maxGap
				}
				if err := r.sleep(ctx, scaled); err != nil {
					log.Printf("[replay] cancelled after %d bars", emitted)
					return emitted, err
				}
			}
		}
		prevTS = b.TS

		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return emitted, ctx.Err()
		case out <- b:
			emitted++
		}
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return emitted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
