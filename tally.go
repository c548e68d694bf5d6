package tally

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/numbering"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/types"
)

// Engine keeps a freelancer ledger consistent: it owns every write that
// touches a derived total, issues invoice numbers and runs the per-user
// timer.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	numbers *numbering.Authority
	locker  lock.Locker
	gateway PaymentGateway
	calc    invoice.Calculator
	now     func() time.Time
	loc     *time.Location

	// aggMu is held shared by a primary write until its deltas are applied
	// or queued, and exclusively by reconciliation and queue replay.
	aggMu sync.RWMutex

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	currency         string
	numberingSeq     numbering.Sequence
	numberingOpts    []numbering.Option
	retryInterval    time.Duration
	retryBatch       int
	retryMaxAttempts int
	retryLimiter     *rate.Limiter
	reconcileEvery   time.Duration
	overdueEvery     time.Duration
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		locker:           lock.NewLocal(),
		now:              time.Now,
		loc:              time.UTC,
		stopChan:         make(chan struct{}),
		currency:         "usd",
		retryInterval:    30 * time.Second,
		retryBatch:       100,
		retryMaxAttempts: 10,
		retryLimiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		reconcileEvery:   time.Hour,
		overdueEvery:     time.Hour,
	}
	e.calc = invoice.NewCalculator(e.currency)

	for _, opt := range opts {
		opt(e)
	}

	e.calc.Currency = e.currency
	e.calc.Floor = types.NewMoney(e.calc.Floor.Amount, e.currency)

	seq := e.numberingSeq
	if seq == nil {
		seq = s
	}
	e.numbers = numbering.New(seq, append([]numbering.Option{numbering.WithLogger(e.logger)}, e.numberingOpts...)...)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCurrency sets the ledger currency. Defaults to "usd".
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = types.Zero(currency).Currency
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the zone that calendar months are cut in for reports.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithNumbering issues invoice numbers from seq instead of the store.
func WithNumbering(seq numbering.Sequence, opts ...numbering.Option) Option {
	return func(e *Engine) {
		e.numberingSeq = seq
		e.numberingOpts = opts
	}
}

// WithLocker replaces the in-process timer lock, e.g. with lock.NewRedis
// when several processes share a store.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithGateway enables ConfirmGatewayPayment.
func WithGateway(g PaymentGateway) Option {
	return func(e *Engine) {
		e.gateway = g
	}
}

// WithTotalFloor clamps invoice totals at floor minor units. Defaults to 0.
func WithTotalFloor(floor int64) Option {
	return func(e *Engine) {
		e.calc.Floor = types.Money{Amount: floor}
		e.calc.Clamp = true
	}
}

// WithoutTotalClamp lets discounts drive invoice totals negative.
func WithoutTotalClamp() Option {
	return func(e *Engine) {
		e.calc.Clamp = false
	}
}

// WithSyncRetry configures the queued delta retry worker. perSecond bounds
// how many deltas are replayed per second.
func WithSyncRetry(interval time.Duration, maxAttempts int, perSecond float64) Option {
	return func(e *Engine) {
		e.retryInterval = interval
		e.retryMaxAttempts = maxAttempts
		if perSecond > 0 {
			e.retryLimiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
		}
	}
}

// WithReconcileInterval sets how often aggregates are recomputed from
// source records. Zero disables the worker.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.reconcileEvery = d
	}
}

// WithOverdueSweepInterval sets how often sent invoices past their due
// date are marked overdue. Zero disables the worker.
func WithOverdueSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.overdueEvery = d
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.every(ctx, "sync retry", e.retryInterval, func(ctx context.Context) {
		if _, err := e.RetrySyncFailures(ctx); err != nil {
			e.logger.Error("sync retry pass failed", "error", err)
		}
	})
	e.every(ctx, "reconcile", e.reconcileEvery, func(ctx context.Context) {
		if _, err := e.Reconcile(ctx); err != nil {
			e.logger.Error("reconciliation failed", "error", err)
		}
	})
	e.every(ctx, "overdue sweep", e.overdueEvery, func(ctx context.Context) {
		if _, err := e.SweepOverdue(ctx); err != nil {
			e.logger.Error("overdue sweep failed", "error", err)
		}
	})

	e.logger.Info("tally started",
		"currency", e.currency,
		"retry_interval", e.retryInterval,
		"reconcile_interval", e.reconcileEvery,
		"overdue_interval", e.overdueEvery,
	)

	return nil
}

// Stop shuts down the workers, notifies plugins and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// every runs fn on a ticker until Stop. A zero interval disables it.
func (e *Engine) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				e.logger.Debug("worker tick", "worker", name)
				fn(ctx)
			}
		}
	}()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Currency returns the ledger currency.
func (e *Engine) Currency() string { return e.currency }

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// ──────────────────────────────────────────────────
// Caller identity
// ──────────────────────────────────────────────────

type userKey struct{}

// WithUser scopes ctx to the user that owns the records being touched.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user set by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userKey{}).(string)
	return v, ok && v != ""
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := UserFromContext(ctx)
	if !ok {
		return "", ErrUnauthorized
	}
	return userID, nil
}
