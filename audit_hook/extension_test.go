package audithook_test

import (
	"context"
	"errors"
	"testing"

	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/types"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) recorder() audithook.Recorder {
	return audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func TestInvoiceStatusChangedSeverity(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder())

	inv := &invoice.Invoice{ID: id.NewInvoiceID(), UserID: "user_1", Number: "INV-00003", Status: invoice.StatusOverdue}
	if err := ext.OnInvoiceStatusChanged(context.Background(), inv, invoice.StatusSent); err != nil {
		t.Fatalf("OnInvoiceStatusChanged: %v", err)
	}

	if len(c.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != audithook.ActionInvoiceStatusChanged {
		t.Errorf("action: got %q", evt.Action)
	}
	if evt.Severity != audithook.SeverityWarning {
		t.Errorf("severity: got %q, want warning", evt.Severity)
	}
	if evt.UserID != "user_1" || evt.ResourceID != inv.ID.String() {
		t.Errorf("unexpected ids: %+v", evt)
	}
	if evt.Metadata["from"] != "sent" || evt.Metadata["to"] != "overdue" {
		t.Errorf("metadata: got %v", evt.Metadata)
	}
}

func TestReconciledRecordsEachDrift(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder())

	report := &aggregate.Report{
		ClientsChecked: 2,
		Drifts: []aggregate.Drift{
			{Kind: aggregate.KindClientRevenue, TargetID: "cli_a", Field: "total_revenue", Stored: 10, Actual: 0, Corrected: true},
			{Kind: aggregate.KindProjectTotals, TargetID: "proj_b", Field: "total_minutes", Stored: 5, Actual: 9},
		},
	}
	if err := ext.OnReconciled(context.Background(), report); err != nil {
		t.Fatalf("OnReconciled: %v", err)
	}

	if len(c.events) != 3 {
		t.Fatalf("expected summary plus 2 drift events, got %d", len(c.events))
	}
	if c.events[0].Action != audithook.ActionAggregateReconciled {
		t.Errorf("first event: got %q", c.events[0].Action)
	}
	if c.events[1].Outcome != audithook.OutcomeSuccess {
		t.Errorf("corrected drift outcome: got %q", c.events[1].Outcome)
	}
	if c.events[2].Outcome != audithook.OutcomeFailure {
		t.Errorf("uncorrected drift outcome: got %q", c.events[2].Outcome)
	}
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder(), audithook.WithDisabledActions(audithook.ActionPaymentRecorded))

	p := &payment.Payment{ID: id.NewPaymentID(), InvoiceID: id.NewInvoiceID(), Amount: types.USD(500), Method: payment.MethodCash}
	if err := ext.OnPaymentRecorded(context.Background(), p); err != nil {
		t.Fatalf("OnPaymentRecorded: %v", err)
	}
	if len(c.events) != 0 {
		t.Errorf("expected disabled action to be skipped, got %d events", len(c.events))
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder(),
		audithook.WithEnabledActions(audithook.ActionPaymentRecorded, audithook.ActionAggregateSyncFailed),
		audithook.WithDisabledActions(audithook.ActionAggregateSyncFailed),
	)
	ctx := context.Background()

	p := &payment.Payment{ID: id.NewPaymentID(), InvoiceID: id.NewInvoiceID(), Amount: types.USD(500), Method: payment.MethodCash}
	if err := ext.OnPaymentRecorded(ctx, p); err != nil {
		t.Fatal(err)
	}
	f := &aggregate.SyncFailure{ID: id.NewSyncFailureID(), Delta: aggregate.Delta{Kind: aggregate.KindClientRevenue, TargetID: "cli_x"}}
	if err := ext.OnAggregateSyncFailed(ctx, f); err != nil {
		t.Fatal(err)
	}
	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Status: invoice.StatusSent}
	if err := ext.OnInvoiceStatusChanged(ctx, inv, invoice.StatusDraft); err != nil {
		t.Fatal(err)
	}

	if len(c.events) != 1 || c.events[0].Action != audithook.ActionPaymentRecorded {
		t.Errorf("expected only the payment event, got %+v", c.events)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))

	f := &aggregate.SyncFailure{
		ID:    id.NewSyncFailureID(),
		Delta: aggregate.Delta{Kind: aggregate.KindClientRevenue, TargetID: "cli_x", Amount: 100},
		Error: "store down",
	}
	if err := ext.OnAggregateSyncFailed(context.Background(), f); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
