package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"
)

// WebhookConfig defines a generic webhook channel.
type WebhookConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`
}

// Config lists the active channels, in delivery order, and their settings.
type Config struct {
	Channels []ChannelKind `mapstructure:"channels" yaml:"channels"`
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Pushover PushoverConfig `mapstructure:"pushover" yaml:"pushover"`
	Ntfy     NtfyConfig     `mapstructure:"ntfy" yaml:"ntfy"`
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
}

type registryOptions struct {
	lookup  LookupIPFunc
	console io.Writer
	loc     *time.Location
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*registryOptions)

// WithLookup replaces the DNS resolver used to vet push destinations.
func WithLookup(fn LookupIPFunc) RegistryOption {
	return func(o *registryOptions) { o.lookup = fn }
}

// WithConsoleWriter redirects the console channel.
func WithConsoleWriter(w io.Writer) RegistryOption {
	return func(o *registryOptions) { o.console = w }
}

// WithLocation sets the time zone used when formatting timestamps.
func WithLocation(loc *time.Location) RegistryOption {
	return func(o *registryOptions) { o.loc = loc }
}

type sinkBuilder func(ctx context.Context, cfg Config, o *registryOptions) (Sink, error)

var builders = map[ChannelKind]sinkBuilder{
	ChannelConsole: func(_ context.Context, _ Config, o *registryOptions) (Sink, error) {
		return NewConsoleSink(o.console, o.loc), nil
	},
	ChannelWebhook: func(_ context.Context, cfg Config, o *registryOptions) (Sink, error) {
		if cfg.Webhook.URL == "" {
			return nil, errors.New("webhook url is required")
		}
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil {
			return nil, fmt.Errorf("parse webhook url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("webhook url %q must be an absolute http(s) url", cfg.Webhook.URL)
		}
		return NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.Secret, o.loc), nil
	},
	ChannelTelegram: func(_ context.Context, cfg Config, o *registryOptions) (Sink, error) {
		return NewTelegramSink(cfg.Telegram, o.loc)
	},
	ChannelPushover: func(_ context.Context, cfg Config, o *registryOptions) (Sink, error) {
		return NewPushoverSink(cfg.Pushover, o.loc)
	},
	ChannelNtfy: func(ctx context.Context, cfg Config, o *registryOptions) (Sink, error) {
		if cfg.Ntfy.TopicURL == "" {
			return nil, errors.New("ntfy topic_url is required")
		}
		if err := ValidatePublicURL(ctx, cfg.Ntfy.TopicURL, o.lookup); err != nil {
			return nil, err
		}
		return NewNtfySink(cfg.Ntfy, o.loc)
	},
	ChannelEmail: func(_ context.Context, cfg Config, o *registryOptions) (Sink, error) {
		return NewEmailSink(cfg.Email, o.loc)
	},
	ChannelSlack: func(_ context.Context, cfg Config, o *registryOptions) (Sink, error) {
		return NewSlackSink(cfg.Slack, o.loc)
	},
}

// Registry holds the sinks built from configuration.
type Registry struct {
	sinks []Sink
}

// NewRegistry builds one sink per configured channel. Channels that are
// unknown, repeated, or fail validation are skipped with a warning.
func NewRegistry(ctx context.Context, cfg Config, logger *slog.Logger, opts ...RegistryOption) *Registry {
	o := &registryOptions{lookup: DefaultLookupIP, loc: time.Local}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{}
	seen := make(map[ChannelKind]bool, len(cfg.Channels))
	for _, kind := range cfg.Channels {
		build, ok := builders[kind]
		if !ok {
			logger.Warn("unknown notification channel, skipping", "channel", kind)
			continue
		}
		if seen[kind] {
			logger.Warn("duplicate notification channel, skipping", "channel", kind)
			continue
		}
		seen[kind] = true

		sink, err := build(ctx, cfg, o)
		if err != nil {
			logger.Warn("invalid notification channel, skipping", "channel", kind, "error", err)
			continue
		}
		r.sinks = append(r.sinks, sink)
	}

	if len(r.sinks) == 0 {
		logger.Warn("no notification channels available, notifications are disabled")
	}
	return r
}

// Sinks returns the active sinks in configuration order.
func (r *Registry) Sinks() []Sink {
	return append([]Sink(nil), r.sinks...)
}

// Kinds returns the channel kind of every active sink.
func (r *Registry) Kinds() []ChannelKind {
	kinds := make([]ChannelKind, len(r.sinks))
	for i, s := range r.sinks {
		kinds[i] = s.Kind()
	}
	return kinds
}

func (r *Registry) Len() int { return len(r.sinks) }
