package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

type fakeCounter struct{ value float64 }

func (c *fakeCounter) Inc()          { c.value++ }
func (c *fakeCounter) Add(v float64) { c.value += v }

type fakeHistogram struct{ observed []float64 }

func (h *fakeHistogram) Observe(v float64) { h.observed = append(h.observed, v) }

type fakeFactory struct {
	counters   map[string]*fakeCounter
	histograms map[string]*fakeHistogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*fakeCounter),
		histograms: make(map[string]*fakeHistogram),
	}
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	c := &fakeCounter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	h := &fakeHistogram{}
	f.histograms[name] = h
	return h
}

func TestInvoiceMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	inv := &invoice.Invoice{Status: invoice.StatusSent, Total: types.USD(13800)}
	_ = m.OnInvoiceCreated(ctx, inv)
	_ = m.OnInvoiceStatusChanged(ctx, inv, invoice.StatusDraft)

	inv.Status = invoice.StatusPaid
	_ = m.OnInvoiceStatusChanged(ctx, inv, invoice.StatusSent)
	_ = m.OnInvoicePaid(ctx, inv)

	tests := []struct {
		name string
		want float64
	}{
		{"tally.invoice.created", 1},
		{"tally.invoice.sent", 1},
		{"tally.invoice.paid", 1},
		{"tally.invoice.overdue", 0},
	}
	for _, tt := range tests {
		if got := f.counters[tt.name].value; got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
	if got := f.histograms["tally.invoice.total_minor"].observed; len(got) != 1 || got[0] != 13800 {
		t.Errorf("invoice total histogram: got %v", got)
	}
}

func TestTrackingMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	entry := &timeentry.TimeEntry{Duration: 90, Amount: types.USD(7500)}
	_ = m.OnTimerStarted(ctx, entry)
	_ = m.OnTimerStopped(ctx, entry)
	_ = m.OnProjectDeleted(ctx, &project.Project{}, 4)
	_ = m.OnPaymentRecorded(ctx, &payment.Payment{Amount: types.USD(2500)})

	if got := f.counters["tally.time_entry.cascaded"].value; got != 4 {
		t.Errorf("cascaded: got %v, want 4", got)
	}
	if got := f.histograms["tally.timer.minutes"].observed; len(got) != 1 || got[0] != 90 {
		t.Errorf("minutes: got %v", got)
	}
	if got := f.histograms["tally.payment.amount_minor"].observed; len(got) != 1 || got[0] != 2500 {
		t.Errorf("payment amount: got %v", got)
	}
}

func TestReconcileMetrics(t *testing.T) {
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	start := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	report := &aggregate.Report{
		StartedAt:  start,
		FinishedAt: start.Add(250 * time.Millisecond),
		Drifts: []aggregate.Drift{
			{Kind: aggregate.KindClientRevenue, Corrected: true},
			{Kind: aggregate.KindProjectTotals},
		},
	}
	if err := m.OnReconciled(context.Background(), report); err != nil {
		t.Fatalf("OnReconciled: %v", err)
	}

	if got := f.counters["tally.reconcile.drifts"].value; got != 2 {
		t.Errorf("drifts: got %v, want 2", got)
	}
	if got := f.counters["tally.reconcile.corrections"].value; got != 1 {
		t.Errorf("corrections: got %v, want 1", got)
	}
	if got := f.histograms["tally.reconcile.duration_ms"].observed; len(got) != 1 || got[0] != 250 {
		t.Errorf("duration: got %v", got)
	}
}
