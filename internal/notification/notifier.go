// Package notification delivers signal alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"srsignals/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification.
type Alert struct {
	Level    AlertLevel   `json:"level"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Symbol   string       `json:"symbol,omitempty"`
	Interval string       `json:"interval,omitempty"`
	Signal   model.Signal `json:"signal"`
	Price    float64      `json:"price_level,omitempty"`
	TS       time.Time    `json:"ts"`
}

// Notifier is implemented by every alert backend.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// AlertFromSignal describes a non-zero signal. ok is false for SignalNone.
func AlertFromSignal(r model.SignalResult) (Alert, bool) {
	var (
		side  string
		level float64
	)
	switch r.Signal {
	case model.SignalBullish:
		side, level = "support", r.Support
	case model.SignalBearish:
		side, level = "resistance", r.Resistance
	default:
		return Alert{}, false
	}
	return Alert{
		Level:    AlertInfo,
		Title:    fmt.Sprintf("%s %s %s", r.Symbol, r.Interval, r.Signal),
		Message:  fmt.Sprintf("%s rejection at %s %.5f (bar %d, %s, %d levels)", r.Signal, side, level, r.Index, r.TS.Format(time.RFC3339), r.LevelCount),
		Symbol:   r.Symbol,
		Interval: r.Interval,
		Signal:   r.Signal,
		Price:    level,
		TS:       r.TS,
	}, true
}

// LogNotifier logs alerts.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Dispatcher sends every non-zero signal to each notifier.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration

	// OnResult, when set, is called per delivery attempt with "ok" or "error".
	OnResult func(notifier, result string)
}

// NewDispatcher creates a Dispatcher. timeout bounds each Send.
func NewDispatcher(timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout}
}

// Notify delivers r to every notifier and joins their errors.
func (d *Dispatcher) Notify(ctx context.Context, r model.SignalResult) error {
	alert, ok := AlertFromSignal(r)
	if !ok {
		return nil
	}
	var errs []error
	for _, n := range d.notifiers {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := n.Send(sctx, alert)
		cancel()
		result := "ok"
		if err != nil {
			result = "error"
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
		if d.OnResult != nil {
			d.OnResult(n.Name(), result)
		}
	}
	return errors.Join(errs...)
}

// Run notifies for every result from ch until ctx is cancelled or ch closes.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan model.SignalResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			if err := d.Notify(ctx, r); err != nil {
				log.Printf("[notify] %s #%d: %v", r.Key(), r.Index, err)
			}
		}
	}
}
