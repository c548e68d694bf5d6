// Package plugin provides an extensible plugin system for Tally.
// Plugins hook into ledger events to add audit trails, metrics or
// notifications without touching the billing path.
package plugin

import (
	"context"
	"io"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. e is the *tally.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Client and project hooks
// ──────────────────────────────────────────────────

type OnClientCreated interface {
	Plugin
	OnClientCreated(ctx context.Context, c *client.Client) error
}

type OnClientDeleted interface {
	Plugin
	OnClientDeleted(ctx context.Context, c *client.Client) error
}

type OnProjectCreated interface {
	Plugin
	OnProjectCreated(ctx context.Context, p *project.Project) error
}

// OnProjectDeleted receives the project and the number of time entries
// removed with it.
type OnProjectDeleted interface {
	Plugin
	OnProjectDeleted(ctx context.Context, p *project.Project, entries int64) error
}

// ──────────────────────────────────────────────────
// Timer hooks
// ──────────────────────────────────────────────────

type OnTimerStarted interface {
	Plugin
	OnTimerStarted(ctx context.Context, e *timeentry.TimeEntry) error
}

type OnTimerStopped interface {
	Plugin
	OnTimerStopped(ctx context.Context, e *timeentry.TimeEntry) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

type OnInvoiceCreated interface {
	Plugin
	OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceStatusChanged fires after every committed status transition,
// including the one into paid.
type OnInvoiceStatusChanged interface {
	Plugin
	OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) error
}

// OnInvoicePaid fires once per invoice, when it enters paid.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

type OnInvoiceDeleted interface {
	Plugin
	OnInvoiceDeleted(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p *payment.Payment) error
}

// ──────────────────────────────────────────────────
// Aggregate hooks
// ──────────────────────────────────────────────────

// OnAggregateSyncFailed fires when a derived total could not be updated
// and the delta was queued for retry.
type OnAggregateSyncFailed interface {
	Plugin
	OnAggregateSyncFailed(ctx context.Context, f *aggregate.SyncFailure) error
}

// OnReconciled fires after each reconciliation pass.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, report *aggregate.Report) error
}

// ──────────────────────────────────────────────────
// Invoice formatters
// ──────────────────────────────────────────────────

// InvoiceFormatter renders invoices for export.
type InvoiceFormatter interface {
	Plugin
	Format() string // "xlsx", "csv", ...
	Render(ctx context.Context, inv *invoice.Invoice, c *client.Client, w io.Writer) error
}
