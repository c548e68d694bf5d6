package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// DefaultTimeout bounds each plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onClientCreated        []OnClientCreated
	onClientDeleted        []OnClientDeleted
	onProjectCreated       []OnProjectCreated
	onProjectDeleted       []OnProjectDeleted
	onTimerStarted         []OnTimerStarted
	onTimerStopped         []OnTimerStopped
	onInvoiceCreated       []OnInvoiceCreated
	onInvoiceStatusChanged []OnInvoiceStatusChanged
	onInvoicePaid          []OnInvoicePaid
	onInvoiceDeleted       []OnInvoiceDeleted
	onPaymentRecorded      []OnPaymentRecorded
	onAggregateSyncFailed  []OnAggregateSyncFailed
	onReconciled           []OnReconciled
	invoiceFormatters      map[string]InvoiceFormatter
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:            slog.Default(),
		timeout:           DefaultTimeout,
		invoiceFormatters: make(map[string]InvoiceFormatter),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnClientCreated); ok {
		r.onClientCreated = append(r.onClientCreated, v)
	}
	if v, ok := p.(OnClientDeleted); ok {
		r.onClientDeleted = append(r.onClientDeleted, v)
	}
	if v, ok := p.(OnProjectCreated); ok {
		r.onProjectCreated = append(r.onProjectCreated, v)
	}
	if v, ok := p.(OnProjectDeleted); ok {
		r.onProjectDeleted = append(r.onProjectDeleted, v)
	}
	if v, ok := p.(OnTimerStarted); ok {
		r.onTimerStarted = append(r.onTimerStarted, v)
	}
	if v, ok := p.(OnTimerStopped); ok {
		r.onTimerStopped = append(r.onTimerStopped, v)
	}
	if v, ok := p.(OnInvoiceCreated); ok {
		r.onInvoiceCreated = append(r.onInvoiceCreated, v)
	}
	if v, ok := p.(OnInvoiceStatusChanged); ok {
		r.onInvoiceStatusChanged = append(r.onInvoiceStatusChanged, v)
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
	}
	if v, ok := p.(OnInvoiceDeleted); ok {
		r.onInvoiceDeleted = append(r.onInvoiceDeleted, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnAggregateSyncFailed); ok {
		r.onAggregateSyncFailed = append(r.onAggregateSyncFailed, v)
	}
	if v, ok := p.(OnReconciled); ok {
		r.onReconciled = append(r.onReconciled, v)
	}
	if v, ok := p.(InvoiceFormatter); ok {
		r.invoiceFormatters[v.Format()] = v
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnClientCreated", reflect.TypeOf((*OnClientCreated)(nil)).Elem()},
	{"OnClientDeleted", reflect.TypeOf((*OnClientDeleted)(nil)).Elem()},
	{"OnProjectCreated", reflect.TypeOf((*OnProjectCreated)(nil)).Elem()},
	{"OnProjectDeleted", reflect.TypeOf((*OnProjectDeleted)(nil)).Elem()},
	{"OnTimerStarted", reflect.TypeOf((*OnTimerStarted)(nil)).Elem()},
	{"OnTimerStopped", reflect.TypeOf((*OnTimerStopped)(nil)).Elem()},
	{"OnInvoiceCreated", reflect.TypeOf((*OnInvoiceCreated)(nil)).Elem()},
	{"OnInvoiceStatusChanged", reflect.TypeOf((*OnInvoiceStatusChanged)(nil)).Elem()},
	{"OnInvoicePaid", reflect.TypeOf((*OnInvoicePaid)(nil)).Elem()},
	{"OnInvoiceDeleted", reflect.TypeOf((*OnInvoiceDeleted)(nil)).Elem()},
	{"OnPaymentRecorded", reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem()},
	{"OnAggregateSyncFailed", reflect.TypeOf((*OnAggregateSyncFailed)(nil)).Elem()},
	{"OnReconciled", reflect.TypeOf((*OnReconciled)(nil)).Elem()},
	{"InvoiceFormatter", reflect.TypeOf((*InvoiceFormatter)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// InvoiceFormatter returns the formatter registered for format, or nil.
func (r *Registry) InvoiceFormatter(format string) InvoiceFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.invoiceFormatters[format]
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for each plugin in the snapshot taken from list. A
// failing plugin is logged and never interrupts the others.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, list func() []T, fn func(T) error) {
	r.mu.RLock()
	plugins := list()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	dispatch(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

func (r *Registry) EmitClientCreated(ctx context.Context, c *client.Client) {
	dispatch(ctx, r, "OnClientCreated", func() []OnClientCreated { return r.onClientCreated }, func(p OnClientCreated) error {
		return p.OnClientCreated(ctx, c)
	})
}

func (r *Registry) EmitClientDeleted(ctx context.Context, c *client.Client) {
	dispatch(ctx, r, "OnClientDeleted", func() []OnClientDeleted { return r.onClientDeleted }, func(p OnClientDeleted) error {
		return p.OnClientDeleted(ctx, c)
	})
}

func (r *Registry) EmitProjectCreated(ctx context.Context, pr *project.Project) {
	dispatch(ctx, r, "OnProjectCreated", func() []OnProjectCreated { return r.onProjectCreated }, func(p OnProjectCreated) error {
		return p.OnProjectCreated(ctx, pr)
	})
}

func (r *Registry) EmitProjectDeleted(ctx context.Context, pr *project.Project, entries int64) {
	dispatch(ctx, r, "OnProjectDeleted", func() []OnProjectDeleted { return r.onProjectDeleted }, func(p OnProjectDeleted) error {
		return p.OnProjectDeleted(ctx, pr, entries)
	})
}

func (r *Registry) EmitTimerStarted(ctx context.Context, e *timeentry.TimeEntry) {
	dispatch(ctx, r, "OnTimerStarted", func() []OnTimerStarted { return r.onTimerStarted }, func(p OnTimerStarted) error {
		return p.OnTimerStarted(ctx, e)
	})
}

func (r *Registry) EmitTimerStopped(ctx context.Context, e *timeentry.TimeEntry) {
	dispatch(ctx, r, "OnTimerStopped", func() []OnTimerStopped { return r.onTimerStopped }, func(p OnTimerStopped) error {
		return p.OnTimerStopped(ctx, e)
	})
}

func (r *Registry) EmitInvoiceCreated(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoiceCreated", func() []OnInvoiceCreated { return r.onInvoiceCreated }, func(p OnInvoiceCreated) error {
		return p.OnInvoiceCreated(ctx, inv)
	})
}

func (r *Registry) EmitInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) {
	dispatch(ctx, r, "OnInvoiceStatusChanged", func() []OnInvoiceStatusChanged { return r.onInvoiceStatusChanged }, func(p OnInvoiceStatusChanged) error {
		return p.OnInvoiceStatusChanged(ctx, inv, from)
	})
}

func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoicePaid", func() []OnInvoicePaid { return r.onInvoicePaid }, func(p OnInvoicePaid) error {
		return p.OnInvoicePaid(ctx, inv)
	})
}

func (r *Registry) EmitInvoiceDeleted(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoiceDeleted", func() []OnInvoiceDeleted { return r.onInvoiceDeleted }, func(p OnInvoiceDeleted) error {
		return p.OnInvoiceDeleted(ctx, inv)
	})
}

func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay *payment.Payment) {
	dispatch(ctx, r, "OnPaymentRecorded", func() []OnPaymentRecorded { return r.onPaymentRecorded }, func(p OnPaymentRecorded) error {
		return p.OnPaymentRecorded(ctx, pay)
	})
}

func (r *Registry) EmitAggregateSyncFailed(ctx context.Context, f *aggregate.SyncFailure) {
	dispatch(ctx, r, "OnAggregateSyncFailed", func() []OnAggregateSyncFailed { return r.onAggregateSyncFailed }, func(p OnAggregateSyncFailed) error {
		return p.OnAggregateSyncFailed(ctx, f)
	})
}

func (r *Registry) EmitReconciled(ctx context.Context, report *aggregate.Report) {
	dispatch(ctx, r, "OnReconciled", func() []OnReconciled { return r.onReconciled }, func(p OnReconciled) error {
		return p.OnReconciled(ctx, report)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
