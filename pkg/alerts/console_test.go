package alerts_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSink_Kind(t *testing.T) {
	assert.Equal(t, alerts.ChannelConsole, alerts.NewConsoleSink(nil, nil).Kind())
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	s := alerts.NewConsoleSink(&buf, testLoc)

	err := s.Send(context.Background(), alerts.LowBalance(testReading(), testTime()))
	require.NoError(t, err)
	assert.Equal(t,
		"⚠️ [Low Power Warning] Room: 220407, Money: 8.50 CNY, Energy: 14.44 kWh, Time: 2026-01-02 09:30:00\n",
		buf.String())
}

func TestConsoleSink_UnknownEventIsNoop(t *testing.T) {
	var buf bytes.Buffer
	s := alerts.NewConsoleSink(&buf, testLoc)

	require.NoError(t, s.Send(context.Background(), alerts.Event{Kind: "mystery"}))
	assert.Empty(t, buf.String())
}
