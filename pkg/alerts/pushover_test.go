package alerts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushoverConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   alerts.PushoverConfig
		want alerts.PushoverConfig
	}{
		{
			name: "priority above range",
			in:   alerts.PushoverConfig{Priority: 7, Retry: 5, Expire: 99999},
			want: alerts.PushoverConfig{Priority: 2, Retry: 30, Expire: 10800},
		},
		{
			name: "priority below range",
			in:   alerts.PushoverConfig{Priority: -5},
			want: alerts.PushoverConfig{Priority: -2},
		},
		{
			name: "emergency within bounds",
			in:   alerts.PushoverConfig{Priority: 2, Retry: 60, Expire: 3600},
			want: alerts.PushoverConfig{Priority: 2, Retry: 60, Expire: 3600},
		},
		{
			name: "non-emergency leaves retry alone",
			in:   alerts.PushoverConfig{Priority: 1, Retry: 1, Expire: 1},
			want: alerts.PushoverConfig{Priority: 1, Retry: 1, Expire: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want.Priority, got.Priority)
			assert.Equal(t, tt.want.Retry, got.Retry)
			assert.Equal(t, tt.want.Expire, got.Expire)
			assert.NotEmpty(t, got.APIURL)
		})
	}
}

func TestNewPushoverSink_RequiresCredentials(t *testing.T) {
	_, err := alerts.NewPushoverSink(alerts.PushoverConfig{APIToken: "tok"}, nil)
	assert.Error(t, err)
	_, err = alerts.NewPushoverSink(alerts.PushoverConfig{UserKey: "user"}, nil)
	assert.Error(t, err)
}

func TestPushoverSink_Send(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := alerts.NewPushoverSink(alerts.PushoverConfig{
		APIToken: "app-token",
		UserKey:  "user-key",
		Priority: 2,
		Retry:    10,
		Expire:   3600,
		APIURL:   server.URL,
	}, testLoc)
	require.NoError(t, err)
	assert.Equal(t, alerts.ChannelPushover, s.Kind())

	err = s.Send(context.Background(), alerts.LowBalance(testReading(), testTime()))
	require.NoError(t, err)

	assert.Equal(t, "app-token", form.Get("token"))
	assert.Equal(t, "user-key", form.Get("user"))
	assert.Equal(t, "⚠️ [Low Power Warning]", form.Get("title"))
	assert.Equal(t, "2", form.Get("priority"))
	assert.Equal(t, "30", form.Get("retry"))
	assert.Equal(t, "3600", form.Get("expire"))
}

func TestPushoverSink_Send_HeartbeatDoesNotPage(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := alerts.NewPushoverSink(alerts.PushoverConfig{
		APIToken: "app-token", UserKey: "user-key", Priority: 2, APIURL: server.URL,
	}, testLoc)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), alerts.Heartbeat(testReading(), testTime())))
	assert.Equal(t, "0", form.Get("priority"))
	assert.Empty(t, form.Get("retry"))
}

func TestPushoverSink_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s, err := alerts.NewPushoverSink(alerts.PushoverConfig{APIToken: "a", UserKey: "u", APIURL: server.URL}, testLoc)
	require.NoError(t, err)

	err = s.Send(context.Background(), alerts.Heartbeat(testReading(), testTime()))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
