package tally_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/invoice"
)

type syncWatcher struct {
	mu       sync.Mutex
	failures []*aggregate.SyncFailure
	reports  []*aggregate.Report
}

func (w *syncWatcher) Name() string { return "sync-watcher" }

func (w *syncWatcher) OnAggregateSyncFailed(_ context.Context, f *aggregate.SyncFailure) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, f)
	return nil
}

func (w *syncWatcher) OnReconciled(_ context.Context, r *aggregate.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, r)
	return nil
}

func TestFailedDeltaIsQueuedAndRetried(t *testing.T) {
	watcher := &syncWatcher{}
	h := newHarness(t, tally.WithPlugin(watcher))
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusSent, 7500, "1")

	h.store.broken.Store(true)
	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("mark paid with broken aggregates: %v", err)
	}

	got, err := h.engine.GetInvoice(h.ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != invoice.StatusPaid {
		t.Fatalf("primary write lost: status %s", got.Status)
	}
	h.wantRevenue(c, 0)

	queued, err := h.store.ListSyncFailures(h.ctx, 10)
	if err != nil {
		t.Fatalf("ListSyncFailures: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued: got %d, want 1", len(queued))
	}
	if queued[0].Delta.Kind != aggregate.KindClientRevenue || queued[0].Delta.Amount != 7500 {
		t.Errorf("queued delta: %+v", queued[0].Delta)
	}
	if len(watcher.failures) != 1 {
		t.Errorf("sync failure hooks: got %d, want 1", len(watcher.failures))
	}

	// Still broken: the entry stays queued with another attempt.
	res, err := h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if res.Pending != 1 {
		t.Errorf("pending: got %+v", res)
	}

	h.store.broken.Store(false)
	res, err = h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if res.Applied != 1 {
		t.Errorf("applied: got %+v", res)
	}
	h.wantRevenue(c, 7500)

	queued, _ = h.store.ListSyncFailures(h.ctx, 10)
	if len(queued) != 0 {
		t.Errorf("queue not drained: %d left", len(queued))
	}
}

func TestRetryGivesUp(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	h.store.broken.Store(true)
	h.project(c, 1000)

	// Three attempts allowed: the enqueue counts as the first.
	res, err := h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if res.Pending != 1 {
		t.Errorf("second attempt: got %+v", res)
	}

	res, err = h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if res.Dropped != 1 {
		t.Errorf("third attempt: got %+v", res)
	}

	queued, _ := h.store.ListSyncFailures(h.ctx, 10)
	if len(queued) != 0 {
		t.Errorf("exhausted failure still queued")
	}
}

func TestRetryDropsMissingTarget(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	h.store.broken.Store(true)
	p := h.project(c, 1000)
	h.store.broken.Store(false)

	// Remove the client behind the queued count.
	if err := h.store.DeleteProject(h.ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if err := h.store.DeleteClient(h.ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}

	res, err := h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if res.Dropped != 1 {
		t.Errorf("dropped: got %+v", res)
	}
}

func TestReconcileCorrectsDrift(t *testing.T) {
	watcher := &syncWatcher{}
	h := newHarness(t, tally.WithPlugin(watcher))
	c := h.client("Acme")

	h.store.broken.Store(true)
	p := h.project(c, 6000)
	h.entry(p, t0, 2*time.Hour)
	inv := h.invoice(c, invoice.StatusSent, 30000, "1")
	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	h.store.broken.Store(false)

	// Drift the stored totals further by hand.
	if err := h.store.IncrementClientRevenue(h.ctx, c.ID, 99); err != nil {
		t.Fatalf("IncrementClientRevenue: %v", err)
	}

	h.clock.Advance(time.Minute)
	report, err := h.engine.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if report.ClientsChecked != 1 || report.ProjectsChecked != 1 {
		t.Errorf("checked: %d clients, %d projects", report.ClientsChecked, report.ProjectsChecked)
	}
	// revenue, project count, minutes, earned
	if len(report.Drifts) != 4 {
		t.Errorf("drifts: got %d, want 4: %+v", len(report.Drifts), report.Drifts)
	}
	for _, d := range report.Drifts {
		if !d.Corrected {
			t.Errorf("drift not corrected: %+v", d)
		}
	}
	if report.Purged != 3 {
		t.Errorf("purged: got %d, want 3", report.Purged)
	}

	h.wantRevenue(c, 30000)
	if got := h.reloadClient(c).ProjectCount; got != 1 {
		t.Errorf("project count: got %d, want 1", got)
	}
	h.wantProjectTotals(p, 120, 12000)

	if len(watcher.reports) != 1 {
		t.Errorf("reconciled hooks: got %d, want 1", len(watcher.reports))
	}

	again, err := h.engine.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !again.Clean() {
		t.Errorf("second pass found drift: %+v", again.Drifts)
	}
}

func TestReconcileBetweenRetryListAndApply(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusSent, 10000, "1")

	h.store.broken.Store(true)
	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	h.store.broken.Store(false)

	var (
		report *aggregate.Report
		recErr error
	)
	reconcile := func() { report, recErr = h.engine.Reconcile(context.Background()) }
	h.store.afterListSyncFailures.Store(&reconcile)

	res, err := h.engine.RetrySyncFailures(h.ctx)
	if err != nil {
		t.Fatalf("RetrySyncFailures: %v", err)
	}
	if recErr != nil {
		t.Fatalf("Reconcile: %v", recErr)
	}
	if len(report.Drifts) != 1 || report.Purged != 1 {
		t.Errorf("reconcile: %d drifts, %d purged; want 1 and 1", len(report.Drifts), report.Purged)
	}
	if res.Applied != 0 {
		t.Errorf("retry applied a delta reconcile already folded in: %+v", res)
	}
	h.wantRevenue(c, 10000)

	queued, _ := h.store.ListSyncFailures(h.ctx, 0)
	if len(queued) != 0 {
		t.Errorf("queue: got %d entries, want 0", len(queued))
	}
}

func TestReconcileWaitsForInFlightDelta(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusSent, 10000, "1")

	done := make(chan *aggregate.Report, 1)
	start := func() {
		go func() {
			r, err := h.engine.Reconcile(context.Background())
			if err != nil {
				t.Errorf("Reconcile: %v", err)
			}
			done <- r
		}()
		time.Sleep(20 * time.Millisecond)
	}
	h.store.afterTransition.Store(&start)

	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	report := <-done
	if report != nil && len(report.Drifts) != 0 {
		t.Errorf("reconcile saw a half-applied write: %+v", report.Drifts)
	}
	h.wantRevenue(c, 10000)
}
