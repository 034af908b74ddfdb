package alerts_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("CST", 8*3600)

func testReading() *model.Reading {
	return &model.Reading{
		RemainingMoney:  decimal.RequireFromString("8.5"),
		RemainingEnergy: decimal.RequireFromString("14.444"),
		RoomDisplayName: "220407",
		RoomID:          "r-1",
	}
}

func testTime() time.Time {
	return time.Date(2026, 1, 2, 9, 30, 0, 0, testLoc)
}

func TestFormat_LowBalance(t *testing.T) {
	msg, ok := alerts.Format(alerts.LowBalance(testReading(), testTime()), testLoc)
	require.True(t, ok)

	assert.Equal(t, "⚠️ [Low Power Warning]", msg.Title)
	assert.Equal(t, alerts.SeverityWarning, msg.Severity)
	assert.Equal(t, "Room: 220407\nMoney: 8.50 CNY\nEnergy: 14.44 kWh\nTime: 2026-01-02 09:30:00", msg.Body)
}

func TestFormat_Heartbeat(t *testing.T) {
	msg, ok := alerts.Format(alerts.Heartbeat(testReading(), testTime()), testLoc)
	require.True(t, ok)

	assert.Equal(t, "ℹ️ [Daily Report]", msg.Title)
	assert.Equal(t, alerts.SeverityInfo, msg.Severity)
	assert.Contains(t, msg.Body, "Money: 8.50 CNY")
}

func TestFormat_Failures(t *testing.T) {
	tests := []struct {
		event alerts.Event
		title string
	}{
		{alerts.LoginFailure("bad password", testTime()), "❌ [Login Failed]"},
		{alerts.ConsecutiveFetchFailures("Failed to fetch data 3 times consecutively", testTime()), "❌ [Fetch Failed]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Kind), func(t *testing.T) {
			msg, ok := alerts.Format(tt.event, testLoc)
			require.True(t, ok)
			assert.Equal(t, tt.title, msg.Title)
			assert.Equal(t, alerts.SeverityError, msg.Severity)
			assert.Equal(t, "Error: "+tt.event.Message+"\nTime: 2026-01-02 09:30:00", msg.Body)
		})
	}
}

func TestFormat_Unformattable(t *testing.T) {
	_, ok := alerts.Format(alerts.Event{Kind: "unknown"}, testLoc)
	assert.False(t, ok)

	_, ok = alerts.Format(alerts.Event{Kind: alerts.EventLowBalance}, testLoc)
	assert.False(t, ok, "reading events without a reading have nothing to render")
}

func TestMessage_Line(t *testing.T) {
	msg := alerts.Message{Title: "T", Body: "a\nb"}
	assert.Equal(t, "T a, b", msg.Line())
	assert.Equal(t, "T\na\nb", msg.Text())
}
