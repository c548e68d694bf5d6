// Package config loads Tally engine settings from a file and TALLY_*
// environment variables and turns them into engine options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/xraph/tally"
	stripegw "github.com/xraph/tally/gateway/stripe"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/numbering"
)

// EnvPrefix is prepended to every environment override, so
// sync_retry.interval is read from TALLY_SYNC_RETRY_INTERVAL.
const EnvPrefix = "TALLY"

// Config holds engine settings. Zero values fall back to DefaultConfig
// when loaded through Load.
type Config struct {
	// Currency is the ISO 4217 code every amount is stored in.
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency" validate:"required,len=3"`

	// Location is the IANA zone calendar months are cut in for reports.
	Location string `json:"location" mapstructure:"location" yaml:"location"`

	// Invoice numbering.
	InvoicePrefix string `json:"invoice_prefix" mapstructure:"invoice_prefix" yaml:"invoice_prefix"`
	InvoiceWidth  int    `json:"invoice_width" mapstructure:"invoice_width" yaml:"invoice_width" validate:"min=1,max=18"`

	// TotalFloor is the lowest invoice total in minor units. Ignored when
	// DisableTotalClamp is set.
	TotalFloor        int64 `json:"total_floor" mapstructure:"total_floor" yaml:"total_floor"`
	DisableTotalClamp bool  `json:"disable_total_clamp" mapstructure:"disable_total_clamp" yaml:"disable_total_clamp"`

	SyncRetry SyncRetryConfig `json:"sync_retry" mapstructure:"sync_retry" yaml:"sync_retry"`

	// ReconcileInterval and OverdueSweepInterval schedule the background
	// workers. Zero disables a worker.
	ReconcileInterval    time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval" validate:"gte=0"`
	OverdueSweepInterval time.Duration `json:"overdue_sweep_interval" mapstructure:"overdue_sweep_interval" yaml:"overdue_sweep_interval" validate:"gte=0"`

	Redis  RedisConfig  `json:"redis" mapstructure:"redis" yaml:"redis"`
	Stripe StripeConfig `json:"stripe" mapstructure:"stripe" yaml:"stripe"`
}

// SyncRetryConfig tunes the queued aggregate delta replay.
type SyncRetryConfig struct {
	Interval    time.Duration `json:"interval" mapstructure:"interval" yaml:"interval" validate:"gte=0"`
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	PerSecond   float64       `json:"per_second" mapstructure:"per_second" yaml:"per_second" validate:"gte=0"`
}

// RedisConfig enables the Redis invoice counter and timer lock when Addr
// is set.
type RedisConfig struct {
	Addr      string        `json:"addr" mapstructure:"addr" yaml:"addr"`
	Password  string        `json:"password" mapstructure:"password" yaml:"password"`
	DB        int           `json:"db" mapstructure:"db" yaml:"db" validate:"gte=0"`
	KeyPrefix string        `json:"key_prefix" mapstructure:"key_prefix" yaml:"key_prefix"`
	LockTTL   time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// StripeConfig enables gateway payment confirmation when SecretKey is set.
type StripeConfig struct {
	SecretKey string `json:"secret_key" mapstructure:"secret_key" yaml:"secret_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:      "usd",
		Location:      "UTC",
		InvoicePrefix: "INV-",
		InvoiceWidth:  5,
		SyncRetry: SyncRetryConfig{
			Interval:    30 * time.Second,
			MaxAttempts: 10,
			PerSecond:   10,
		},
		ReconcileInterval:    time.Hour,
		OverdueSweepInterval: time.Hour,
		Redis: RedisConfig{
			KeyPrefix: "tally:seq:",
			LockTTL:   10 * time.Second,
		},
	}
}

// Load reads path (any format viper understands) and applies TALLY_*
// environment overrides on top of DefaultConfig. With an empty path it
// looks for tally.{yaml,json,toml} in the working directory and carries on
// without one.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tally")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("currency", d.Currency)
	v.SetDefault("location", d.Location)
	v.SetDefault("invoice_prefix", d.InvoicePrefix)
	v.SetDefault("invoice_width", d.InvoiceWidth)
	v.SetDefault("total_floor", d.TotalFloor)
	v.SetDefault("disable_total_clamp", d.DisableTotalClamp)
	v.SetDefault("sync_retry.interval", d.SyncRetry.Interval)
	v.SetDefault("sync_retry.max_attempts", d.SyncRetry.MaxAttempts)
	v.SetDefault("sync_retry.per_second", d.SyncRetry.PerSecond)
	v.SetDefault("reconcile_interval", d.ReconcileInterval)
	v.SetDefault("overdue_sweep_interval", d.OverdueSweepInterval)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)
	v.SetDefault("stripe.secret_key", d.Stripe.SecretKey)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that Location names a known zone.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.location(); err != nil {
		return err
	}
	return nil
}

func (c Config) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("config: location %q: %w", c.Location, err)
	}
	return loc, nil
}

// RedisClient returns a client for Redis, or nil when no address is
// configured. The caller owns the client.
func (c Config) RedisClient() redis.UniversalClient {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// EngineOptions converts c into tally options. When rdb is non-nil the
// invoice counter and timer lock move to Redis.
func (c Config) EngineOptions(logger *slog.Logger, rdb redis.UniversalClient) ([]tally.Option, error) {
	loc, err := c.location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	numOpts := []numbering.Option{
		numbering.WithPrefix(c.InvoicePrefix),
		numbering.WithWidth(c.InvoiceWidth),
	}

	opts := []tally.Option{
		tally.WithLogger(logger),
		tally.WithCurrency(c.Currency),
		tally.WithLocation(loc),
		tally.WithSyncRetry(c.SyncRetry.Interval, c.SyncRetry.MaxAttempts, c.SyncRetry.PerSecond),
		tally.WithReconcileInterval(c.ReconcileInterval),
		tally.WithOverdueSweepInterval(c.OverdueSweepInterval),
	}

	if c.DisableTotalClamp {
		opts = append(opts, tally.WithoutTotalClamp())
	} else {
		opts = append(opts, tally.WithTotalFloor(c.TotalFloor))
	}

	if rdb != nil {
		opts = append(opts,
			tally.WithNumbering(numbering.NewRedisSequence(rdb, c.Redis.KeyPrefix), numOpts...),
			tally.WithLocker(lock.NewRedis(rdb, c.Redis.LockTTL, 0, logger)),
		)
	} else {
		opts = append(opts, tally.WithNumbering(nil, numOpts...))
	}

	if c.Stripe.SecretKey != "" {
		opts = append(opts, tally.WithGateway(stripegw.New(c.Stripe.SecretKey)))
	}

	return opts, nil
}
