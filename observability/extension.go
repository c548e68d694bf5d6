// Package observability provides a metrics extension for Tally that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnClientCreated        = (*MetricsExtension)(nil)
	_ plugin.OnClientDeleted        = (*MetricsExtension)(nil)
	_ plugin.OnProjectCreated       = (*MetricsExtension)(nil)
	_ plugin.OnProjectDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnTimerStarted         = (*MetricsExtension)(nil)
	_ plugin.OnTimerStopped         = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCreated       = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid          = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnAggregateSyncFailed  = (*MetricsExtension)(nil)
	_ plugin.OnReconciled           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Tally plugin to track tracking and billing activity.
type MetricsExtension struct {
	// Account metrics
	ClientCreated  Counter
	ClientDeleted  Counter
	ProjectCreated Counter
	ProjectDeleted Counter

	// Tracking metrics
	TimerStarted    Counter
	TimerStopped    Counter
	TrackedMinutes  Histogram
	EntriesCascaded Counter
	TrackedEarnings Histogram

	// Invoice metrics
	InvoiceCreated   Counter
	InvoiceSent      Counter
	InvoiceOverdue   Counter
	InvoiceCancelled Counter
	InvoicePaid      Counter
	InvoiceDeleted   Counter
	InvoiceTotal     Histogram

	// Payment metrics
	PaymentRecorded Counter
	PaymentAmount   Histogram

	// Consistency metrics
	AggregateSyncFailed  Counter
	ReconcileRuns        Counter
	ReconcileDrifts      Counter
	ReconcileCorrections Counter
	ReconcileDuration    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		ClientCreated:  factory.Counter("tally.client.created"),
		ClientDeleted:  factory.Counter("tally.client.deleted"),
		ProjectCreated: factory.Counter("tally.project.created"),
		ProjectDeleted: factory.Counter("tally.project.deleted"),

		TimerStarted:    factory.Counter("tally.timer.started"),
		TimerStopped:    factory.Counter("tally.timer.stopped"),
		TrackedMinutes:  factory.Histogram("tally.timer.minutes"),
		EntriesCascaded: factory.Counter("tally.time_entry.cascaded"),
		TrackedEarnings: factory.Histogram("tally.timer.earned_minor"),

		InvoiceCreated:   factory.Counter("tally.invoice.created"),
		InvoiceSent:      factory.Counter("tally.invoice.sent"),
		InvoiceOverdue:   factory.Counter("tally.invoice.overdue"),
		InvoiceCancelled: factory.Counter("tally.invoice.cancelled"),
		InvoicePaid:      factory.Counter("tally.invoice.paid"),
		InvoiceDeleted:   factory.Counter("tally.invoice.deleted"),
		InvoiceTotal:     factory.Histogram("tally.invoice.total_minor"),

		PaymentRecorded: factory.Counter("tally.payment.recorded"),
		PaymentAmount:   factory.Histogram("tally.payment.amount_minor"),

		AggregateSyncFailed:  factory.Counter("tally.aggregate.sync_failed"),
		ReconcileRuns:        factory.Counter("tally.reconcile.runs"),
		ReconcileDrifts:      factory.Counter("tally.reconcile.drifts"),
		ReconcileCorrections: factory.Counter("tally.reconcile.corrections"),
		ReconcileDuration:    factory.Histogram("tally.reconcile.duration_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnClientCreated implements plugin.OnClientCreated.
func (m *MetricsExtension) OnClientCreated(context.Context, *client.Client) error {
	m.ClientCreated.Inc()
	return nil
}

// OnClientDeleted implements plugin.OnClientDeleted.
func (m *MetricsExtension) OnClientDeleted(context.Context, *client.Client) error {
	m.ClientDeleted.Inc()
	return nil
}

// OnProjectCreated implements plugin.OnProjectCreated.
func (m *MetricsExtension) OnProjectCreated(context.Context, *project.Project) error {
	m.ProjectCreated.Inc()
	return nil
}

// OnProjectDeleted implements plugin.OnProjectDeleted.
func (m *MetricsExtension) OnProjectDeleted(_ context.Context, _ *project.Project, entries int64) error {
	m.ProjectDeleted.Inc()
	m.EntriesCascaded.Add(float64(entries))
	return nil
}

// ──────────────────────────────────────────────────
// Tracking hooks
// ──────────────────────────────────────────────────

// OnTimerStarted implements plugin.OnTimerStarted.
func (m *MetricsExtension) OnTimerStarted(context.Context, *timeentry.TimeEntry) error {
	m.TimerStarted.Inc()
	return nil
}

// OnTimerStopped implements plugin.OnTimerStopped.
func (m *MetricsExtension) OnTimerStopped(_ context.Context, e *timeentry.TimeEntry) error {
	m.TimerStopped.Inc()
	m.TrackedMinutes.Observe(float64(e.Duration))
	m.TrackedEarnings.Observe(float64(e.Amount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (m *MetricsExtension) OnInvoiceCreated(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceCreated.Inc()
	m.InvoiceTotal.Observe(float64(inv.Total.Amount))
	return nil
}

// OnInvoiceStatusChanged implements plugin.OnInvoiceStatusChanged.
// Paid is counted by OnInvoicePaid.
func (m *MetricsExtension) OnInvoiceStatusChanged(_ context.Context, inv *invoice.Invoice, _ invoice.Status) error {
	switch inv.Status {
	case invoice.StatusSent:
		m.InvoiceSent.Inc()
	case invoice.StatusOverdue:
		m.InvoiceOverdue.Inc()
	case invoice.StatusCancelled:
		m.InvoiceCancelled.Inc()
	}
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

// OnInvoiceDeleted implements plugin.OnInvoiceDeleted.
func (m *MetricsExtension) OnInvoiceDeleted(context.Context, *invoice.Invoice) error {
	m.InvoiceDeleted.Inc()
	return nil
}

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, p *payment.Payment) error {
	m.PaymentRecorded.Inc()
	m.PaymentAmount.Observe(float64(p.Amount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Consistency hooks
// ──────────────────────────────────────────────────

// OnAggregateSyncFailed implements plugin.OnAggregateSyncFailed.
func (m *MetricsExtension) OnAggregateSyncFailed(context.Context, *aggregate.SyncFailure) error {
	m.AggregateSyncFailed.Inc()
	return nil
}

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, report *aggregate.Report) error {
	m.ReconcileRuns.Inc()
	m.ReconcileDrifts.Add(float64(len(report.Drifts)))

	var corrected int
	for _, d := range report.Drifts {
		if d.Corrected {
			corrected++
		}
	}
	m.ReconcileCorrections.Add(float64(corrected))
	m.ReconcileDuration.Observe(float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds()))
	return nil
}
