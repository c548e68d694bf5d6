// Package audithook bridges Tally lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnClientCreated        = (*Extension)(nil)
	_ plugin.OnClientDeleted        = (*Extension)(nil)
	_ plugin.OnProjectCreated       = (*Extension)(nil)
	_ plugin.OnProjectDeleted       = (*Extension)(nil)
	_ plugin.OnTimerStarted         = (*Extension)(nil)
	_ plugin.OnTimerStopped         = (*Extension)(nil)
	_ plugin.OnInvoiceCreated       = (*Extension)(nil)
	_ plugin.OnInvoiceStatusChanged = (*Extension)(nil)
	_ plugin.OnInvoicePaid          = (*Extension)(nil)
	_ plugin.OnInvoiceDeleted       = (*Extension)(nil)
	_ plugin.OnPaymentRecorded      = (*Extension)(nil)
	_ plugin.OnAggregateSyncFailed  = (*Extension)(nil)
	_ plugin.OnReconciled           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tally lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	only     map[string]struct{} // nil records every action
	skip     map[string]struct{}
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// event is the builder passed to record.
type event struct {
	action, severity, outcome string
	resource, resourceID      string
	category, userID          string
	err                       error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnClientCreated implements plugin.OnClientCreated.
func (e *Extension) OnClientCreated(ctx context.Context, c *client.Client) error {
	return e.record(ctx, event{
		action: ActionClientCreated, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceClient, resourceID: c.ID.String(), category: CategoryAccount, userID: c.UserID,
	}, "name", c.Name)
}

// OnClientDeleted implements plugin.OnClientDeleted.
func (e *Extension) OnClientDeleted(ctx context.Context, c *client.Client) error {
	return e.record(ctx, event{
		action: ActionClientDeleted, severity: SeverityWarning, outcome: OutcomeSuccess,
		resource: ResourceClient, resourceID: c.ID.String(), category: CategoryAccount, userID: c.UserID,
	}, "name", c.Name, "total_revenue", c.TotalRevenue.Amount)
}

// OnProjectCreated implements plugin.OnProjectCreated.
func (e *Extension) OnProjectCreated(ctx context.Context, p *project.Project) error {
	return e.record(ctx, event{
		action: ActionProjectCreated, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceProject, resourceID: p.ID.String(), category: CategoryAccount, userID: p.UserID,
	}, "client_id", p.ClientID.String(), "hourly_rate", p.HourlyRate.Amount)
}

// OnProjectDeleted implements plugin.OnProjectDeleted.
func (e *Extension) OnProjectDeleted(ctx context.Context, p *project.Project, entries int64) error {
	return e.record(ctx, event{
		action: ActionProjectDeleted, severity: SeverityWarning, outcome: OutcomeSuccess,
		resource: ResourceProject, resourceID: p.ID.String(), category: CategoryAccount, userID: p.UserID,
	}, "client_id", p.ClientID.String(), "time_entries_deleted", entries)
}

// ──────────────────────────────────────────────────
// Timer hooks
// ──────────────────────────────────────────────────

// OnTimerStarted implements plugin.OnTimerStarted.
func (e *Extension) OnTimerStarted(ctx context.Context, te *timeentry.TimeEntry) error {
	return e.record(ctx, event{
		action: ActionTimerStarted, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceTimeEntry, resourceID: te.ID.String(), category: CategoryTracking, userID: te.UserID,
	}, "project_id", te.ProjectID.String())
}

// OnTimerStopped implements plugin.OnTimerStopped.
func (e *Extension) OnTimerStopped(ctx context.Context, te *timeentry.TimeEntry) error {
	return e.record(ctx, event{
		action: ActionTimerStopped, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceTimeEntry, resourceID: te.ID.String(), category: CategoryTracking, userID: te.UserID,
	}, "project_id", te.ProjectID.String(), "minutes", te.Duration, "amount", te.Amount.Amount)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (e *Extension) OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, event{
		action: ActionInvoiceCreated, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceInvoice, resourceID: inv.ID.String(), category: CategoryBilling, userID: inv.UserID,
	}, "number", inv.Number, "total", inv.Total.Amount, "currency", inv.Currency)
}

// OnInvoiceStatusChanged implements plugin.OnInvoiceStatusChanged.
func (e *Extension) OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) error {
	severity := SeverityInfo
	if inv.Status == invoice.StatusOverdue || inv.Status == invoice.StatusCancelled {
		severity = SeverityWarning
	}
	return e.record(ctx, event{
		action: ActionInvoiceStatusChanged, severity: severity, outcome: OutcomeSuccess,
		resource: ResourceInvoice, resourceID: inv.ID.String(), category: CategoryBilling, userID: inv.UserID,
	}, "number", inv.Number, "from", string(from), "to", string(inv.Status))
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, event{
		action: ActionInvoicePaid, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourceInvoice, resourceID: inv.ID.String(), category: CategoryPayment, userID: inv.UserID,
	}, "number", inv.Number, "total", inv.Total.Amount, "payment_method", inv.PaymentMethod)
}

// OnInvoiceDeleted implements plugin.OnInvoiceDeleted.
func (e *Extension) OnInvoiceDeleted(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, event{
		action: ActionInvoiceDeleted, severity: SeverityWarning, outcome: OutcomeSuccess,
		resource: ResourceInvoice, resourceID: inv.ID.String(), category: CategoryBilling, userID: inv.UserID,
	}, "number", inv.Number, "status", string(inv.Status))
}

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, event{
		action: ActionPaymentRecorded, severity: SeverityInfo, outcome: OutcomeSuccess,
		resource: ResourcePayment, resourceID: p.ID.String(), category: CategoryPayment, userID: p.UserID,
	}, "invoice_id", p.InvoiceID.String(), "amount", p.Amount.Amount, "method", string(p.Method))
}

// ──────────────────────────────────────────────────
// Consistency hooks
// ──────────────────────────────────────────────────

// OnAggregateSyncFailed implements plugin.OnAggregateSyncFailed.
func (e *Extension) OnAggregateSyncFailed(ctx context.Context, f *aggregate.SyncFailure) error {
	return e.record(ctx, event{
		action: ActionAggregateSyncFailed, severity: SeverityError, outcome: OutcomeFailure,
		resource: ResourceAggregate, resourceID: f.Delta.TargetID, category: CategoryConsistency,
		err: errors.New(f.Error),
	}, "kind", string(f.Delta.Kind), "cause", f.Delta.Cause, "attempts", f.Attempts)
}

// OnReconciled implements plugin.OnReconciled. Each drift is recorded on its
// own so the trail names every corrected aggregate.
func (e *Extension) OnReconciled(ctx context.Context, report *aggregate.Report) error {
	outcome := OutcomeSuccess
	if len(report.Errors) > 0 {
		outcome = OutcomePartial
	}
	_ = e.record(ctx, event{ //nolint:errcheck // record never fails
		action: ActionAggregateReconciled, severity: SeverityInfo, outcome: outcome,
		resource: ResourceAggregate, category: CategoryConsistency,
	}, "clients_checked", report.ClientsChecked, "projects_checked", report.ProjectsChecked,
		"drifts", len(report.Drifts), "purged", report.Purged)

	for _, d := range report.Drifts {
		outcome := OutcomeSuccess
		if !d.Corrected {
			outcome = OutcomeFailure
		}
		_ = e.record(ctx, event{ //nolint:errcheck // record never fails
			action: ActionAggregateDrift, severity: SeverityWarning, outcome: outcome,
			resource: ResourceAggregate, resourceID: d.TargetID, category: CategoryConsistency,
		}, "kind", string(d.Kind), "field", d.Field, "stored", d.Stored, "actual", d.Actual)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged, never returned.
func (e *Extension) record(ctx context.Context, ev event, kvPairs ...any) error {
	if !e.allows(ev.action) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if ev.err != nil {
		reason = ev.err.Error()
		meta["error"] = ev.err.Error()
	}

	evt := &AuditEvent{
		Action:     ev.action,
		Resource:   ev.resource,
		Category:   ev.category,
		ResourceID: ev.resourceID,
		UserID:     ev.userID,
		Metadata:   meta,
		Outcome:    ev.outcome,
		Severity:   ev.severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", ev.action,
			"resource_id", ev.resourceID,
			"error", recErr,
		)
	}
	return nil
}
