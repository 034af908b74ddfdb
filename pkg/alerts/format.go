package alerts

import (
	"fmt"
	"strings"
	"time"
)

// Severity drives per-channel styling.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// TimeLayout is used for every timestamp rendered into a message body.
const TimeLayout = "2006-01-02 15:04:05"

// Message is the channel-agnostic rendering of an event.
type Message struct {
	Title    string
	Body     string
	Severity Severity
}

// Text joins title and body the way plain-text channels show them.
func (m Message) Text() string {
	return m.Title + "\n" + m.Body
}

// Line renders the message on a single line.
func (m Message) Line() string {
	return m.Title + " " + strings.ReplaceAll(m.Body, "\n", ", ")
}

// Format renders an event. A nil loc means time.Local. The boolean is false for
// events that carry nothing to render; sinks treat those as delivered.
func Format(ev Event, loc *time.Location) (Message, bool) {
	if loc == nil {
		loc = time.Local
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	stamp := at.In(loc).Format(TimeLayout)

	switch ev.Kind {
	case EventLowBalance, EventHeartbeat:
		if ev.Reading == nil {
			return Message{}, false
		}
		msg := Message{Title: "⚠️ [Low Power Warning]", Severity: SeverityWarning}
		if ev.Kind == EventHeartbeat {
			msg = Message{Title: "ℹ️ [Daily Report]", Severity: SeverityInfo}
		}
		r := ev.Reading
		msg.Body = fmt.Sprintf("Room: %s\nMoney: %s CNY\nEnergy: %s kWh\nTime: %s",
			r.RoomDisplayName, r.RemainingMoney.StringFixed(2), r.RemainingEnergy.StringFixed(2), stamp)
		return msg, true

	case EventLoginFailure, EventFetchFailures:
		title := "❌ [Login Failed]"
		if ev.Kind == EventFetchFailures {
			title = "❌ [Fetch Failed]"
		}
		return Message{
			Title:    title,
			Body:     fmt.Sprintf("Error: %s\nTime: %s", ev.Message, stamp),
			Severity: SeverityError,
		}, true
	}

	return Message{}, false
}
