package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover priority and emergency bounds, in seconds for retry/expire.
const (
	PushoverPriorityMin       = -2
	PushoverPriorityMax       = 2
	PushoverPriorityEmergency = 2
	pushoverRetryMin          = 30
	pushoverRetryMax          = 10800
	pushoverExpireMin         = 30
	pushoverExpireMax         = 10800
)

// PushoverConfig defines push service settings. Retry and Expire only apply
// to emergency priority.
type PushoverConfig struct {
	APIToken string `mapstructure:"api_token" yaml:"api_token"`
	UserKey  string `mapstructure:"user_key" yaml:"user_key"`
	Priority int    `mapstructure:"priority" yaml:"priority"`
	Retry    int    `mapstructure:"retry" yaml:"retry"`
	Expire   int    `mapstructure:"expire" yaml:"expire"`
	Sound    string `mapstructure:"sound" yaml:"sound,omitempty"`
	APIURL   string `mapstructure:"api_url" yaml:"api_url,omitempty"`
}

// Normalize clamps priority, retry and expire into the ranges the service accepts.
func (c PushoverConfig) Normalize() PushoverConfig {
	c.Priority = clamp(c.Priority, PushoverPriorityMin, PushoverPriorityMax)
	if c.Priority == PushoverPriorityEmergency {
		c.Retry = clamp(c.Retry, pushoverRetryMin, pushoverRetryMax)
		c.Expire = clamp(c.Expire, pushoverExpireMin, pushoverExpireMax)
	}
	if c.APIURL == "" {
		c.APIURL = defaultPushoverURL
	}
	return c
}

// PushoverSink delivers events through the Pushover message API.
type PushoverSink struct {
	cfg    PushoverConfig
	loc    *time.Location
	client *http.Client
}

// NewPushoverSink creates a push sink with a normalized configuration.
func NewPushoverSink(cfg PushoverConfig, loc *time.Location) (*PushoverSink, error) {
	if cfg.APIToken == "" || cfg.UserKey == "" {
		return nil, errors.New("pushover api_token and user_key are required")
	}
	return &PushoverSink{
		cfg:    cfg.Normalize(),
		loc:    loc,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *PushoverSink) Kind() ChannelKind { return ChannelPushover }

// Config returns the normalized configuration in use.
func (p *PushoverSink) Config() PushoverConfig { return p.cfg }

func (p *PushoverSink) Send(ctx context.Context, event Event) error {
	msg, ok := Format(event, p.loc)
	if !ok {
		return nil
	}

	form := url.Values{}
	form.Set("token", p.cfg.APIToken)
	form.Set("user", p.cfg.UserKey)
	form.Set("title", msg.Title)
	form.Set("message", msg.Body)
	form.Set("timestamp", strconv.FormatInt(event.At.Unix(), 10))

	priority := p.cfg.Priority
	if msg.Severity == SeverityInfo && priority > 0 {
		// Daily reports never page.
		priority = 0
	}
	form.Set("priority", strconv.Itoa(priority))
	if priority == PushoverPriorityEmergency {
		form.Set("retry", strconv.Itoa(p.cfg.Retry))
		form.Set("expire", strconv.Itoa(p.cfg.Expire))
	}
	if p.cfg.Sound != "" {
		form.Set("sound", p.cfg.Sound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushover alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover returned status %d", resp.StatusCode)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
