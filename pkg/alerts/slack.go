package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SlackConfig defines an incoming webhook channel.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel,omitempty"`
}

// SlackSink posts events to a Slack incoming webhook.
type SlackSink struct {
	cfg    SlackConfig
	loc    *time.Location
	client *http.Client
}

// NewSlackSink creates a Slack webhook sink.
func NewSlackSink(cfg SlackConfig, loc *time.Location) (*SlackSink, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("slack webhook_url is required")
	}
	return &SlackSink{
		cfg: cfg,
		loc: loc,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (s *SlackSink) Kind() ChannelKind { return ChannelSlack }

func (s *SlackSink) Send(ctx context.Context, event Event) error {
	msg, ok := Format(event, s.loc)
	if !ok {
		return nil
	}

	color := "#36a64f" // green
	switch msg.Severity {
	case SeverityWarning:
		color = "#ff9900" // orange
	case SeverityError:
		color = "#cc0000" // dark red
	}

	var fields []slackField
	if r := event.Reading; r != nil {
		fields = []slackField{
			{Title: "Room", Value: r.RoomDisplayName, Short: true},
			{Title: "Money", Value: r.RemainingMoney.StringFixed(2) + " CNY", Short: true},
			{Title: "Energy", Value: r.RemainingEnergy.StringFixed(2) + " kWh", Short: true},
		}
	} else {
		fields = []slackField{{Title: "Error", Value: event.Message}}
	}

	payload := slackPayload{
		Channel: s.cfg.Channel,
		Attachments: []slackAttachment{
			{
				Color:  color,
				Title:  msg.Title,
				Text:   msg.Body,
				Fields: fields,
				Footer: "powermon",
				Ts:     event.At.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
