package extension

import (
	"github.com/xraph/tally/config"
)

// Config holds the Tally extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tally" or "tally" keys).
type Config struct {
	// Engine settings shared with the standalone loader.
	config.Config `mapstructure:",squash" yaml:",inline"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Config: config.DefaultConfig()}
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	d := config.DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = d.Currency
	}
	if cfg.Location == "" {
		cfg.Location = d.Location
	}
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = d.InvoicePrefix
	}
	if cfg.InvoiceWidth == 0 {
		cfg.InvoiceWidth = d.InvoiceWidth
	}
	if cfg.SyncRetry.Interval == 0 {
		cfg.SyncRetry.Interval = d.SyncRetry.Interval
	}
	if cfg.SyncRetry.MaxAttempts == 0 {
		cfg.SyncRetry.MaxAttempts = d.SyncRetry.MaxAttempts
	}
	if cfg.SyncRetry.PerSecond == 0 {
		cfg.SyncRetry.PerSecond = d.SyncRetry.PerSecond
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = d.ReconcileInterval
	}
	if cfg.OverdueSweepInterval == 0 {
		cfg.OverdueSweepInterval = d.OverdueSweepInterval
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = d.Redis.KeyPrefix
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = d.Redis.LockTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableTotalClamp {
		yamlConfig.DisableTotalClamp = true
	}

	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.Location == "" {
		yamlConfig.Location = programmaticConfig.Location
	}
	if yamlConfig.InvoicePrefix == "" {
		yamlConfig.InvoicePrefix = programmaticConfig.InvoicePrefix
	}
	if yamlConfig.InvoiceWidth == 0 {
		yamlConfig.InvoiceWidth = programmaticConfig.InvoiceWidth
	}
	if yamlConfig.TotalFloor == 0 {
		yamlConfig.TotalFloor = programmaticConfig.TotalFloor
	}
	if yamlConfig.ReconcileInterval == 0 {
		yamlConfig.ReconcileInterval = programmaticConfig.ReconcileInterval
	}
	if yamlConfig.OverdueSweepInterval == 0 {
		yamlConfig.OverdueSweepInterval = programmaticConfig.OverdueSweepInterval
	}
	if yamlConfig.Redis.Addr == "" {
		yamlConfig.Redis = programmaticConfig.Redis
	}
	if yamlConfig.Stripe.SecretKey == "" {
		yamlConfig.Stripe.SecretKey = programmaticConfig.Stripe.SecretKey
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
