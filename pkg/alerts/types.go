package alerts

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/model"
)

// EventKind identifies what triggered a notification.
type EventKind string

const (
	EventLowBalance    EventKind = "low_balance"    // Balance at or below the threshold
	EventHeartbeat     EventKind = "heartbeat"      // Daily report
	EventLoginFailure  EventKind = "login_failure"  // Remote login rejected
	EventFetchFailures EventKind = "fetch_failures" // Consecutive fetch failures reached the threshold
)

// ChannelKind identifies a delivery channel.
type ChannelKind string

const (
	ChannelConsole  ChannelKind = "console"
	ChannelWebhook  ChannelKind = "webhook"
	ChannelTelegram ChannelKind = "telegram"
	ChannelPushover ChannelKind = "pushover"
	ChannelNtfy     ChannelKind = "ntfy"
	ChannelEmail    ChannelKind = "email"
	ChannelSlack    ChannelKind = "slack"
)

// Event is a notification decided by the state machine. Reading is set for
// low balance and heartbeat events, Message for the failure events.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Reading *model.Reading `json:"reading,omitempty"`
	Message string         `json:"message,omitempty"`
	At      time.Time      `json:"at"`
}

// LowBalance builds a low balance event.
func LowBalance(r *model.Reading, at time.Time) Event {
	return Event{Kind: EventLowBalance, Reading: r, At: at}
}

// Heartbeat builds a daily report event.
func Heartbeat(r *model.Reading, at time.Time) Event {
	return Event{Kind: EventHeartbeat, Reading: r, At: at}
}

// LoginFailure builds a login failure event.
func LoginFailure(msg string, at time.Time) Event {
	return Event{Kind: EventLoginFailure, Message: msg, At: at}
}

// ConsecutiveFetchFailures builds a fetch failure event.
func ConsecutiveFetchFailures(msg string, at time.Time) Event {
	return Event{Kind: EventFetchFailures, Message: msg, At: at}
}

// Sink delivers events to one channel.
type Sink interface {
	// Kind returns the channel this sink delivers to.
	Kind() ChannelKind

	// Send delivers an event. Implementations must be safe for concurrent use.
	Send(ctx context.Context, event Event) error
}
