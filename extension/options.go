package extension

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tally"
	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/mongo"
	"github.com/xraph/tally/store/postgres"
	"github.com/xraph/tally/store/sqlite"
)

// Option configures the Tally Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tally engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// Grove backends accepted by WithGrove.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// WithGrove builds the store over a grove database opened with the driver
// for backend. An unknown backend makes Register fail.
func WithGrove(db *grove.DB, backend string) Option {
	return func(e *Extension) {
		switch backend {
		case BackendPostgres:
			e.store = postgres.New(db)
		case BackendSQLite:
			e.store = sqlite.New(db)
		case BackendMongo:
			e.store = mongo.New(db)
		default:
			e.err = fmt.Errorf("tally: unknown grove backend %q", backend)
		}
	}
}

// WithEngineOption passes a tally.Option through to the underlying engine.
// Pass-through options are applied after the configured ones.
func WithEngineOption(opt tally.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tally plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tally.WithPlugin(p))
	}
}

// WithAuditRecorder bridges lifecycle events to an audit trail.
func WithAuditRecorder(r audithook.Recorder, opts ...audithook.Option) Option {
	return WithPlugin(audithook.New(r, opts...))
}

// WithMetrics records lifecycle metrics through factory.
func WithMetrics(factory observability.MetricFactory) Option {
	return WithPlugin(observability.NewMetricsExtension(factory))
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCurrency sets the ledger currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithReconcileInterval sets how often aggregates are recomputed.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileInterval = d }
}

// WithOverdueSweepInterval sets how often overdue invoices are marked.
func WithOverdueSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.OverdueSweepInterval = d }
}

// WithRedis moves the invoice counter and timer lock to Redis at addr.
func WithRedis(addr string) Option {
	return func(e *Extension) { e.config.Redis.Addr = addr }
}
