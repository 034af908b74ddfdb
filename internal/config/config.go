package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ogulcanaydogan/powermon/pkg/alerts"
	"github.com/ogulcanaydogan/powermon/pkg/fetcher"
	"github.com/ogulcanaydogan/powermon/pkg/notify"
	"github.com/ogulcanaydogan/powermon/pkg/retry"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override. Nested keys use "__", so
// notify.threshold is UPM_NOTIFY__THRESHOLD.
const EnvPrefix = "UPM"

// DefaultSecretsDir is where container secrets are mounted.
const DefaultSecretsDir = "/run/secrets"

// secretKeys are read from files of the same name in the secrets directory.
var secretKeys = []string{"username", "password", "service_url", "database_url"}

// Config holds all powermon configuration.
type Config struct {
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	ServiceURL  string        `mapstructure:"service_url" yaml:"service_url"`
	DatabaseURL string        `mapstructure:"database_url" yaml:"database_url"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	Timezone    string        `mapstructure:"timezone" yaml:"timezone"`
	Fetch       FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Notify      NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Server      ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging     LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// FetchConfig tunes portal requests.
type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
}

// NotifyConfig is the decision policy, the channel settings, and the
// per-delivery retry policy.
type NotifyConfig struct {
	notify.Policy `mapstructure:",squash" yaml:",inline"`
	alerts.Config `mapstructure:",squash" yaml:",inline"`
	Retry         RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig defines delivery retry settings.
type RetryConfig struct {
	Attempts     int           `mapstructure:"attempts" yaml:"attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
}

// ServerConfig defines the status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// defaults lists every key. Keys must be known to viper for AutomaticEnv to
// pick them up during Unmarshal, so empty credentials are listed too.
var defaults = map[string]any{
	"username":     "",
	"password":     "",
	"service_url":  "https://online.uestc.edu.cn",
	"database_url": "sqlite:~/.powermon/powermon.db",
	"interval":     "60s",
	"timezone":     "Local",

	"fetch.timeout":      "15s",
	"fetch.min_interval": "2s",

	"notify.enabled":                 true,
	"notify.threshold":               "10.0",
	"notify.cooldown":                "60m",
	"notify.heartbeat_enabled":       true,
	"notify.heartbeat_hour":          9,
	"notify.login_failure_enabled":   true,
	"notify.fetch_failure_enabled":   true,
	"notify.fetch_failure_threshold": 3,
	"notify.fetch_failure_cooldown":  "60m",
	"notify.channels":                []string{string(alerts.ChannelConsole)},
	"notify.retry.attempts":          3,
	"notify.retry.initial_delay":     "1s",

	"notify.webhook.url":        "",
	"notify.webhook.secret":     "",
	"notify.telegram.bot_token": "",
	"notify.telegram.chat_id":   "",
	"notify.telegram.api_url":   "",
	"notify.pushover.api_token": "",
	"notify.pushover.user_key":  "",
	"notify.pushover.priority":  0,
	"notify.pushover.retry":     60,
	"notify.pushover.expire":    3600,
	"notify.pushover.sound":     "",
	"notify.pushover.api_url":   "",
	"notify.ntfy.topic_url":     "",
	"notify.ntfy.token":         "",
	"notify.ntfy.priority":      3,
	"notify.email.smtp_server":  "",
	"notify.email.smtp_port":    587,
	"notify.email.username":     "",
	"notify.email.password":     "",
	"notify.email.from":         "",
	"notify.email.to":           "",
	"notify.email.encryption":   string(alerts.EncryptionStartTLS),
	"notify.slack.webhook_url":  "",
	"notify.slack.channel":      "",

	"server.enabled": true,
	"server.listen":  ":9100",

	"logging.level":  "info",
	"logging.format": "json",
}

// Load reads configuration. Sources, lowest to highest precedence: defaults,
// the config file, container secrets, a .env file, the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".powermon"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := mergeSecrets(v); err != nil {
		return nil, err
	}

	// A missing .env is normal; existing variables win over its entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// mergeSecrets layers secret files over the config file.
func mergeSecrets(v *viper.Viper) error {
	dir := os.Getenv(EnvPrefix + "_SECRETS_DIR")
	if dir == "" {
		dir = DefaultSecretsDir
	}

	secrets := make(map[string]any)
	for _, key := range secretKeys {
		data, err := os.ReadFile(filepath.Join(dir, key))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read secret %s: %w", key, err)
		}
		secrets[key] = strings.TrimSpace(string(data))
	}
	if len(secrets) == 0 {
		return nil
	}
	if err := v.MergeConfigMap(secrets); err != nil {
		return fmt.Errorf("merge secrets: %w", err)
	}
	return nil
}

// Validate checks the settings the poll loop cannot run without. Channel
// settings are checked separately when sinks are built.
func (c *Config) Validate() error {
	var errs []error
	if c.Username == "" || c.Password == "" {
		errs = append(errs, errors.New("username and password are required"))
	}
	if c.ServiceURL == "" {
		errs = append(errs, errors.New("service_url is required"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Notify.HeartbeatHour < 0 || c.Notify.HeartbeatHour > 23 {
		errs = append(errs, fmt.Errorf("notify.heartbeat_hour must be 0-23, got %d", c.Notify.HeartbeatHour))
	}
	if c.Notify.FetchFailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("notify.fetch_failure_threshold must be positive, got %d", c.Notify.FetchFailureThreshold))
	}
	if c.Notify.Cooldown < 0 || c.Notify.FetchFailureCooldown < 0 {
		errs = append(errs, errors.New("notify cooldowns must not be negative"))
	}
	if c.Notify.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("notify.retry.attempts must be at least 1, got %d", c.Notify.Retry.Attempts))
	}
	if c.Notify.Retry.InitialDelay < 0 {
		errs = append(errs, errors.New("notify.retry.initial_delay must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FetcherConfig returns the portal client settings.
func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		BaseURL:     c.ServiceURL,
		Username:    c.Username,
		Password:    c.Password,
		Timeout:     c.Fetch.Timeout,
		MinInterval: c.Fetch.MinInterval,
	}
}

// RetryPolicy returns the per-delivery retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Notify.Retry.Attempts, InitialDelay: c.Notify.Retry.InitialDelay}
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&out.Password)
	mask(&out.Notify.Webhook.Secret)
	mask(&out.Notify.Telegram.BotToken)
	mask(&out.Notify.Pushover.APIToken)
	mask(&out.Notify.Pushover.UserKey)
	mask(&out.Notify.Ntfy.Token)
	mask(&out.Notify.Email.Password)
	mask(&out.Notify.Slack.WebhookURL)
	out.DatabaseURL = redactURL(out.DatabaseURL)
	out.Notify.Channels = append([]alerts.ChannelKind(nil), c.Notify.Channels...)
	return out
}
