// Package monitor drives the poll loop: fetch, store, decide, dispatch.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/powermon/internal/metrics"
	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/fetcher"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/notify"
)

// ErrLoginFailed ends Run. Credentials are not retried.
var ErrLoginFailed = errors.New("login failed")

// Fetcher produces readings.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.Reading, error)
}

// Saver persists readings.
type Saver interface {
	SaveReading(ctx context.Context, r *model.Reading) error
}

// Dispatcher delivers events.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []alerts.Event) []alerts.Outcome
}

// Observer receives poll instrumentation. *metrics.Metrics implements it.
type Observer interface {
	ObservePoll(result string, took time.Duration)
	ObserveEvents(events []alerts.Event)
	ObserveReading(r *model.Reading)
	SetConsecutiveFailures(n int)
}

// Cycle is what one poll produced.
type Cycle struct {
	Reading  *model.Reading
	Events   []alerts.Event
	Outcomes []alerts.Outcome
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	State       notify.State   `json:"state"`
	LastReading *model.Reading `json:"last_reading,omitempty"`
	LastPollAt  *time.Time     `json:"last_poll_at,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	Interval    string         `json:"interval"`
}

// Monitor owns the notification engine and serializes access to it.
type Monitor struct {
	fetcher    Fetcher
	dispatcher Dispatcher
	store      Saver
	observer   Observer
	logger     *slog.Logger
	interval   time.Duration
	loc        *time.Location
	now        func() time.Time

	pollMu sync.Mutex // one cycle at a time

	mu       sync.Mutex
	engine   *notify.Engine
	last     *model.Reading
	lastPoll *time.Time
	lastErr  string
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithStore persists every successful reading.
func WithStore(s Saver) Option {
	return func(m *Monitor) { m.store = s }
}

// WithObserver reports poll instrumentation.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithInterval sets the time between polls in Run.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithLocation sets the scheduler's time zone.
func WithLocation(loc *time.Location) Option {
	return func(m *Monitor) { m.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a monitor.
func New(engine *notify.Engine, f Fetcher, d Dispatcher, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		engine:     engine,
		fetcher:    f,
		dispatcher: d,
		logger:     logger,
		observer:   nopObserver{},
		interval:   time.Minute,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Poll runs one cycle. A rejected login returns an error wrapping
// ErrLoginFailed; other fetch errors are returned after the failure has been
// recorded and any alert dispatched.
func (m *Monitor) Poll(ctx context.Context) (Cycle, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	start := m.now()
	r, err := m.fetcher.Fetch(ctx)

	var loginErr *fetcher.LoginError
	switch {
	case errors.As(err, &loginErr):
		m.logger.Error("login rejected", "error", err)
		var events []alerts.Event
		m.withEngine(func(e *notify.Engine) {
			if ev, ok := e.OnLoginFailure(err.Error()); ok {
				events = append(events, ev)
			}
		})
		cycle := m.dispatch(ctx, nil, events)
		m.finish(start, metrics.PollLoginError, nil, err)
		return cycle, fmt.Errorf("%w: %w", ErrLoginFailed, err)

	case err != nil && ctx.Err() != nil:
		// Canceled mid-fetch: not a portal failure.
		m.logger.Info("poll interrupted", "error", err)
		return Cycle{}, fmt.Errorf("fetch reading: %w", err)

	case err != nil:
		var (
			events   []alerts.Event
			failures int
		)
		m.withEngine(func(e *notify.Engine) {
			if ev, ok := e.OnFetchFailure(); ok {
				events = append(events, ev)
			}
			failures = e.State().ConsecutiveFetchFailures
		})
		m.logger.Warn("fetch failed", "consecutive_failures", failures, "error", err)
		m.observer.SetConsecutiveFailures(failures)
		cycle := m.dispatch(ctx, nil, events)
		m.finish(start, metrics.PollFetchError, nil, err)
		return cycle, fmt.Errorf("fetch reading: %w", err)

	case r == nil:
		m.withEngine(func(e *notify.Engine) { e.OnFetchSuccess() })
		m.observer.SetConsecutiveFailures(0)
		m.logger.Info("no data available")
		m.finish(start, metrics.PollNoData, nil, nil)
		return Cycle{}, nil
	}

	m.withEngine(func(e *notify.Engine) { e.OnFetchSuccess() })
	m.observer.SetConsecutiveFailures(0)
	m.observer.ObserveReading(r)
	m.logger.Info("reading fetched",
		"room", r.RoomDisplayName,
		"money", r.RemainingMoney.StringFixed(2),
		"energy", r.RemainingEnergy.StringFixed(2),
	)

	if m.store != nil {
		if err := m.store.SaveReading(ctx, r); err != nil {
			m.logger.Error("save reading", "error", err)
		}
	}

	var events []alerts.Event
	m.withEngine(func(e *notify.Engine) { events = e.OnReading(r) })
	cycle := m.dispatch(ctx, r, events)
	m.finish(start, metrics.PollOK, r, nil)
	return cycle, nil
}

func (m *Monitor) withEngine(fn func(e *notify.Engine)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.engine)
}

func (m *Monitor) dispatch(ctx context.Context, r *model.Reading, events []alerts.Event) Cycle {
	cycle := Cycle{Reading: r, Events: events}
	if len(events) == 0 {
		return cycle
	}
	m.observer.ObserveEvents(events)
	cycle.Outcomes = m.dispatcher.Dispatch(ctx, events)
	return cycle
}

func (m *Monitor) finish(start time.Time, result string, r *model.Reading, err error) {
	end := m.now()
	m.observer.ObservePoll(result, end.Sub(start))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPoll = &end
	if r != nil {
		m.last = r
	}
	m.lastErr = ""
	if err != nil {
		m.lastErr = err.Error()
	}
}

// Status returns a snapshot of the monitor and engine state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.engine.State(),
		LastReading: m.last,
		LastPollAt:  m.lastPoll,
		LastError:   m.lastErr,
		Interval:    m.interval.String(),
	}
}

type nopObserver struct{}

func (nopObserver) ObservePoll(string, time.Duration) {}
func (nopObserver) ObserveEvents([]alerts.Event)      {}
func (nopObserver) ObserveReading(*model.Reading)     {}
func (nopObserver) SetConsecutiveFailures(int)        {}
