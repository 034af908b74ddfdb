package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/retry"
)

// Outcome is the result of delivering one event to one channel.
type Outcome struct {
	Event    Event
	Channel  ChannelKind
	Attempts int
	Err      error
}

// DeliveryObserver is notified of every final delivery outcome.
type DeliveryObserver interface {
	ObserveDelivery(channel ChannelKind, event EventKind, err error)
}

// Dispatcher fans events out to sinks, retrying each sink independently.
type Dispatcher struct {
	sinks    []Sink
	policy   retry.Policy
	logger   *slog.Logger
	observer DeliveryObserver
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver reports delivery outcomes to o.
func WithObserver(o DeliveryObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a dispatcher over sinks using the given retry policy.
func NewDispatcher(sinks []Sink, policy retry.Policy, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{sinks: sinks, policy: policy, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers events in order. For each event every sink is attempted
// concurrently; a failing sink never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) []Outcome {
	var outcomes []Outcome
	for _, ev := range events {
		outcomes = append(outcomes, d.deliver(ctx, ev)...)
	}
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) []Outcome {
	results := make([]Outcome, len(d.sinks))
	var wg sync.WaitGroup
	for i, sink := range d.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.send(ctx, sink, ev)
		}()
	}
	wg.Wait()

	for _, out := range results {
		if out.Err != nil {
			d.logger.Error("notification delivery failed",
				"channel", out.Channel,
				"event", ev.Kind,
				"attempts", out.Attempts,
				"error", out.Err,
			)
		} else {
			d.logger.Debug("notification delivered", "channel", out.Channel, "event", ev.Kind)
		}
		if d.observer != nil {
			d.observer.ObserveDelivery(out.Channel, ev.Kind, out.Err)
		}
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, sink Sink, ev Event) Outcome {
	out := Outcome{Event: ev, Channel: sink.Kind()}
	policy := d.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		d.logger.Warn("notification delivery failed, retrying",
			"channel", out.Channel,
			"event", ev.Kind,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
	_, out.Err = retry.Do(func() (struct{}, error) {
		out.Attempts++
		return struct{}{}, sink.Send(ctx, ev)
	}, policy)
	return out
}
