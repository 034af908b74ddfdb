package monitor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/powermon/internal/metrics"
	"github.com/ogulcanaydogan/powermon/internal/monitor"
	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/fetcher"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	reading *model.Reading
	err     error
}

// scriptedFetcher returns results in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []result
	calls   int
}

func (f *scriptedFetcher) Fetch(context.Context) (*model.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.results)-1)
	f.calls++
	return f.results[i].reading, f.results[i].err
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alerts.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, events []alerts.Event) []alerts.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []alerts.Outcome
	for _, ev := range events {
		d.events = append(d.events, ev)
		out = append(out, alerts.Outcome{Event: ev, Channel: alerts.ChannelConsole, Attempts: 1})
	}
	return out
}

func (d *recordingDispatcher) kinds() []alerts.EventKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []alerts.EventKind
	for _, ev := range d.events {
		out = append(out, ev.Kind)
	}
	return out
}

type memStore struct {
	saved []*model.Reading
	err   error
}

func (s *memStore) SaveReading(_ context.Context, r *model.Reading) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

var noon = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func reading(money string) *model.Reading {
	return &model.Reading{
		RemainingMoney:  decimal.RequireFromString(money),
		RemainingEnergy: decimal.RequireFromString("12"),
		RoomDisplayName: "220407",
	}
}

func newMonitor(f monitor.Fetcher, d monitor.Dispatcher, opts ...monitor.Option) *monitor.Monitor {
	p := notify.DefaultPolicy()
	p.Threshold = decimal.NewFromInt(10)
	p.HeartbeatEnabled = false
	p.FetchFailureCooldown = 0
	engine := notify.NewEngine(p, notify.WithClock(func() time.Time { return noon }), notify.WithLocation(time.UTC))
	opts = append([]monitor.Option{monitor.WithClock(func() time.Time { return noon })}, opts...)
	return monitor.New(engine, f, d, discardLogger(), opts...)
}

func TestPoll_LowBalance(t *testing.T) {
	f := &scriptedFetcher{results: []result{{reading: reading("20")}, {reading: reading("8")}}}
	d := &recordingDispatcher{}
	store := &memStore{}
	m := newMonitor(f, d, monitor.WithStore(store))

	cycle, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cycle.Events)

	cycle, err = m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, cycle.Events, 1)
	assert.Equal(t, alerts.EventLowBalance, cycle.Events[0].Kind)
	assert.Len(t, cycle.Outcomes, 1)

	assert.Len(t, store.saved, 2)
	assert.Equal(t, []alerts.EventKind{alerts.EventLowBalance}, d.kinds())

	st := m.Status()
	require.NotNil(t, st.LastReading)
	assert.Equal(t, "8", st.LastReading.RemainingMoney.String())
	assert.Equal(t, noon, *st.LastPollAt)
	assert.Empty(t, st.LastError)
	assert.Equal(t, "8", st.State.LastBalance.String())
}

func TestPoll_SaveErrorIsNotFatal(t *testing.T) {
	f := &scriptedFetcher{results: []result{{reading: reading("5")}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d, monitor.WithStore(&memStore{err: errors.New("disk full")}))

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []alerts.EventKind{alerts.EventLowBalance}, d.kinds())
}

func TestPoll_ConsecutiveFetchFailures(t *testing.T) {
	fetchErr := errors.New("connection reset")
	f := &scriptedFetcher{results: []result{{err: fetchErr}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d)

	for i := 0; i < 3; i++ {
		_, err := m.Poll(context.Background())
		assert.ErrorIs(t, err, fetchErr)
		assert.NotErrorIs(t, err, monitor.ErrLoginFailed)
	}

	assert.Equal(t, []alerts.EventKind{alerts.EventFetchFailures}, d.kinds())
	assert.Equal(t, 3, m.Status().State.ConsecutiveFetchFailures)
	assert.Contains(t, m.Status().LastError, "connection reset")
}

func TestPoll_CanceledFetchIsNotAFailure(t *testing.T) {
	fetchErr := errors.New("connection reset")
	f := &scriptedFetcher{results: []result{{err: fetchErr}, {err: fetchErr}, {err: context.Canceled}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d)

	for i := 0; i < 2; i++ {
		_, err := m.Poll(context.Background())
		require.Error(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cycle, err := m.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cycle.Events)

	assert.Empty(t, d.kinds())
	assert.Equal(t, 2, m.Status().State.ConsecutiveFetchFailures)
}

func TestPoll_NoDataResetsFailures(t *testing.T) {
	f := &scriptedFetcher{results: []result{{err: errors.New("timeout")}, {}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d)

	_, err := m.Poll(context.Background())
	require.Error(t, err)
	cycle, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cycle.Reading)
	assert.Zero(t, m.Status().State.ConsecutiveFetchFailures)
	assert.Empty(t, d.kinds())
}

func TestPoll_LoginFailure(t *testing.T) {
	f := &scriptedFetcher{results: []result{{err: &fetcher.LoginError{StatusCode: 200, Code: 1, Message: "wrong password"}}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d)

	_, err := m.Poll(context.Background())
	require.ErrorIs(t, err, monitor.ErrLoginFailed)
	var loginErr *fetcher.LoginError
	assert.True(t, errors.As(err, &loginErr))

	require.Len(t, d.events, 1)
	assert.Equal(t, alerts.EventLoginFailure, d.events[0].Kind)
	assert.Contains(t, d.events[0].Message, "wrong password")
	assert.Zero(t, m.Status().State.ConsecutiveFetchFailures)
}

func TestPoll_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.New(reg)
	f := &scriptedFetcher{results: []result{{err: errors.New("boom")}, {reading: reading("4")}}}
	m := newMonitor(f, &recordingDispatcher{}, monitor.WithObserver(obs))

	_, _ = m.Poll(context.Background())
	_, _ = m.Poll(context.Background())

	count, err := testutil.GatherAndCount(reg, "powermon_polls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per result")
	count, err = testutil.GatherAndCount(reg, "powermon_notification_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_StopsOnLoginFailure(t *testing.T) {
	f := &scriptedFetcher{results: []result{{err: &fetcher.LoginError{StatusCode: 403}}}}
	d := &recordingDispatcher{}
	m := newMonitor(f, d, monitor.WithInterval(time.Hour))

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, monitor.ErrLoginFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after a rejected login")
	}
	assert.Equal(t, []alerts.EventKind{alerts.EventLoginFailure}, d.kinds())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := &scriptedFetcher{results: []result{{reading: reading("50")}}}
	m := newMonitor(f, &recordingDispatcher{}, monitor.WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Status().LastPollAt != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
