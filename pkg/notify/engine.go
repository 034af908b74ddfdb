package notify

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/shopspring/decimal"
)

// Date is a calendar day in the engine's location.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// State is the debounce memory of one process run. Nil fields have not been
// observed yet.
type State struct {
	LastLowBalanceAlertAt    *time.Time       `json:"last_low_balance_alert_at,omitempty"`
	LastHeartbeatDate        *Date            `json:"last_heartbeat_date,omitempty"`
	LastBalance              *decimal.Decimal `json:"last_balance,omitempty"`
	ConsecutiveFetchFailures int              `json:"consecutive_fetch_failures"`
	LastFetchFailureAlertAt  *time.Time       `json:"last_fetch_failure_alert_at,omitempty"`
}

// Engine turns readings and failure signals into events. It does no I/O and
// is not safe for concurrent use; callers serialize access.
type Engine struct {
	policy Policy
	state  State
	now    func() time.Time
	loc    *time.Location
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone used for the heartbeat hour and date.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// NewEngine creates an engine with empty state.
func NewEngine(p Policy, opts ...Option) *Engine {
	e := &Engine{policy: p, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

// State returns a snapshot of the current state. Pointer fields are never
// mutated in place, so the snapshot is safe to keep.
func (e *Engine) State() State { return e.state }

func (e *Engine) clock() time.Time { return e.now().In(e.loc) }

// OnReading evaluates a successful reading and returns the events to
// dispatch, heartbeat first.
func (e *Engine) OnReading(r *model.Reading) []alerts.Event {
	if !e.policy.Enabled || r == nil {
		return nil
	}
	now := e.clock()

	var events []alerts.Event
	if ev, ok := e.checkHeartbeat(r, now); ok {
		events = append(events, ev)
	}
	if ev, ok := e.checkLowBalance(r, now); ok {
		events = append(events, ev)
	}
	return events
}

func (e *Engine) checkHeartbeat(r *model.Reading, now time.Time) (alerts.Event, bool) {
	if !e.policy.HeartbeatEnabled || now.Hour() != e.policy.HeartbeatHour {
		return alerts.Event{}, false
	}
	today := DateOf(now)
	if e.state.LastHeartbeatDate != nil && *e.state.LastHeartbeatDate == today {
		return alerts.Event{}, false
	}
	e.state.LastHeartbeatDate = &today
	return alerts.Heartbeat(r, now), true
}

func (e *Engine) checkLowBalance(r *model.Reading, now time.Time) (alerts.Event, bool) {
	money := r.RemainingMoney
	defer func() { e.state.LastBalance = &money }()

	if !r.IsBelow(e.policy.Threshold) {
		return alerts.Event{}, false
	}

	last := e.state.LastBalance
	edge := last == nil || last.GreaterThan(e.policy.Threshold)
	if !edge && !due(e.state.LastLowBalanceAlertAt, now, e.policy.Cooldown) {
		return alerts.Event{}, false
	}

	e.state.LastLowBalanceAlertAt = &now
	return alerts.LowBalance(r, now), true
}

// OnFetchFailure records a failed fetch and returns an alert once the
// configured number of consecutive failures is reached, subject to cooldown.
func (e *Engine) OnFetchFailure() (alerts.Event, bool) {
	e.state.ConsecutiveFetchFailures++

	p := e.policy
	if !p.Enabled || !p.FetchFailureEnabled || e.state.ConsecutiveFetchFailures < p.FetchFailureThreshold {
		return alerts.Event{}, false
	}
	now := e.clock()
	if !due(e.state.LastFetchFailureAlertAt, now, p.FetchFailureCooldown) {
		return alerts.Event{}, false
	}

	e.state.LastFetchFailureAlertAt = &now
	msg := fmt.Sprintf("Failed to fetch data %d times consecutively", e.state.ConsecutiveFetchFailures)
	return alerts.ConsecutiveFetchFailures(msg, now), true
}

// OnFetchSuccess resets the consecutive failure counter.
func (e *Engine) OnFetchSuccess() {
	e.state.ConsecutiveFetchFailures = 0
}

// OnLoginFailure returns a login failure alert. There is no cooldown.
func (e *Engine) OnLoginFailure(msg string) (alerts.Event, bool) {
	if !e.policy.Enabled || !e.policy.LoginFailureEnabled {
		return alerts.Event{}, false
	}
	return alerts.LoginFailure(msg, e.clock()), true
}

// due reports whether cooldown has passed since last. A missing timestamp
// counts as due.
func due(last *time.Time, now time.Time, cooldown time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= cooldown
}
