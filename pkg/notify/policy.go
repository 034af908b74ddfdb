// Package notify decides which notifications a poll cycle should produce.
package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the static decision policy. It does not change after load.
type Policy struct {
	Enabled   bool            `mapstructure:"enabled" yaml:"enabled"`
	Threshold decimal.Decimal `mapstructure:"threshold" yaml:"threshold"`
	Cooldown  time.Duration   `mapstructure:"cooldown" yaml:"cooldown"`

	HeartbeatEnabled bool `mapstructure:"heartbeat_enabled" yaml:"heartbeat_enabled"`
	HeartbeatHour    int  `mapstructure:"heartbeat_hour" yaml:"heartbeat_hour"`

	LoginFailureEnabled bool `mapstructure:"login_failure_enabled" yaml:"login_failure_enabled"`

	FetchFailureEnabled   bool          `mapstructure:"fetch_failure_enabled" yaml:"fetch_failure_enabled"`
	FetchFailureThreshold int           `mapstructure:"fetch_failure_threshold" yaml:"fetch_failure_threshold"`
	FetchFailureCooldown  time.Duration `mapstructure:"fetch_failure_cooldown" yaml:"fetch_failure_cooldown"`
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:               true,
		Threshold:             decimal.NewFromInt(10),
		Cooldown:              60 * time.Minute,
		HeartbeatEnabled:      true,
		HeartbeatHour:         9,
		LoginFailureEnabled:   true,
		FetchFailureEnabled:   true,
		FetchFailureThreshold: 3,
		FetchFailureCooldown:  60 * time.Minute,
	}
}
