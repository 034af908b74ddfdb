// Package metrics exposes Prometheus instrumentation for the poll loop and
// notification delivery.
package metrics

import (
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Poll results.
const (
	PollOK         = "ok"
	PollNoData     = "no_data"
	PollFetchError = "fetch_error"
	PollLoginError = "login_error"
)

// Metrics holds every collector. The zero value is not usable; call New.
type Metrics struct {
	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	events        *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	money         prometheus.Gauge
	energy        prometheus.Gauge
	fetchFailures prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powermon_polls_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "powermon_poll_duration_seconds",
			Help:    "Time spent fetching, storing and notifying in one poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powermon_notification_events_total",
			Help: "Notification events decided, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powermon_notification_deliveries_total",
			Help: "Final delivery outcomes per channel and event kind.",
		}, []string{"channel", "event", "result"}),
		money: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powermon_remaining_money_cny",
			Help: "Remaining balance from the latest reading.",
		}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powermon_remaining_energy_kwh",
			Help: "Remaining energy from the latest reading.",
		}),
		fetchFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powermon_consecutive_fetch_failures",
			Help: "Fetch failures since the last successful fetch.",
		}),
	}
	reg.MustRegister(m.polls, m.pollDuration, m.events, m.deliveries, m.money, m.energy, m.fetchFailures)
	return m
}

// ObservePoll records one finished poll cycle.
func (m *Metrics) ObservePoll(result string, took time.Duration) {
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(took.Seconds())
}

// ObserveEvents counts decided events.
func (m *Metrics) ObserveEvents(events []alerts.Event) {
	for _, ev := range events {
		m.events.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// ObserveDelivery implements alerts.DeliveryObserver.
func (m *Metrics) ObserveDelivery(channel alerts.ChannelKind, event alerts.EventKind, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.deliveries.WithLabelValues(string(channel), string(event), result).Inc()
}

// ObserveReading updates the balance gauges.
func (m *Metrics) ObserveReading(r *model.Reading) {
	m.money.Set(r.RemainingMoney.InexactFloat64())
	m.energy.Set(r.RemainingEnergy.InexactFloat64())
}

// SetConsecutiveFailures updates the fetch failure gauge.
func (m *Metrics) SetConsecutiveFailures(n int) {
	m.fetchFailures.Set(float64(n))
}
