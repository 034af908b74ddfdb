package alerts

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	NtfyPriorityMin     = 1
	NtfyPriorityMax     = 5
	ntfyPriorityDefault = 3
	ntfyPriorityUrgent  = 4
)

// NtfyConfig defines topic push settings.
type NtfyConfig struct {
	TopicURL string `mapstructure:"topic_url" yaml:"topic_url"`
	Token    string `mapstructure:"token" yaml:"token,omitempty"`
	Priority int    `mapstructure:"priority" yaml:"priority"`
}

// NtfySink publishes events to an ntfy topic.
type NtfySink struct {
	cfg    NtfyConfig
	loc    *time.Location
	client *http.Client
}

// NewNtfySink creates a topic push sink. The topic URL is not validated here;
// the registry checks it with ValidatePublicURL before construction.
func NewNtfySink(cfg NtfyConfig, loc *time.Location) (*NtfySink, error) {
	if cfg.TopicURL == "" {
		return nil, errors.New("ntfy topic_url is required")
	}
	cfg.Priority = clamp(cfg.Priority, NtfyPriorityMin, NtfyPriorityMax)
	return &NtfySink{
		cfg:    cfg,
		loc:    loc,
		client: &http.Client{
			Timeout: 10 * time.Second,
			// Only the vetted topic host is contacted; redirects are returned as-is.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}, nil
}

func (n *NtfySink) Kind() ChannelKind { return ChannelNtfy }

func (n *NtfySink) Send(ctx context.Context, event Event) error {
	msg, ok := Format(event, n.loc)
	if !ok {
		return nil
	}

	priority := n.cfg.Priority
	tags := "information_source"
	switch msg.Severity {
	case SeverityWarning:
		tags = "warning"
	case SeverityError:
		tags = "rotating_light"
		priority = max(priority, ntfyPriorityUrgent)
	case SeverityInfo:
		priority = min(priority, ntfyPriorityDefault)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.TopicURL, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("Title", mime.QEncoding.Encode("utf-8", msg.Title))
	req.Header.Set("Priority", strconv.Itoa(priority))
	req.Header.Set("Tags", tags)
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
