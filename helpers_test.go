package tally_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/timeentry"
)

const testUser = "user_1"

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// testClock is a settable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// flakyStore fails aggregate increments while broken is set, and the
// invoice link and delete writes while their flags are set. The after hooks
// run once, right after the next read of that kind.
type flakyStore struct {
	*memory.Store
	broken        atomic.Bool
	failLink      atomic.Bool
	failInvDelete atomic.Bool

	afterListSyncFailures atomic.Pointer[func()]
	afterGetTimeEntry     atomic.Pointer[func()]
	afterTransition       atomic.Pointer[func()]
	afterGetClient        atomic.Pointer[func()]
}

func (s *flakyStore) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	res, err := s.Store.GetClient(ctx, clientID)
	if fn := s.afterGetClient.Swap(nil); fn != nil {
		(*fn)()
	}
	return res, err
}

func (s *flakyStore) TransitionInvoiceStatus(ctx context.Context, invID id.InvoiceID, t invoice.Transition) error {
	err := s.Store.TransitionInvoiceStatus(ctx, invID, t)
	if fn := s.afterTransition.Swap(nil); fn != nil {
		(*fn)()
	}
	return err
}

func (s *flakyStore) LinkTimeEntries(ctx context.Context, entryIDs []id.TimeEntryID, invoiceID id.InvoiceID) error {
	if s.failLink.Load() {
		return errStoreDown
	}
	return s.Store.LinkTimeEntries(ctx, entryIDs, invoiceID)
}

func (s *flakyStore) DeleteInvoice(ctx context.Context, invID id.InvoiceID, status invoice.Status) error {
	if s.failInvDelete.Load() {
		return errStoreDown
	}
	return s.Store.DeleteInvoice(ctx, invID, status)
}

func (s *flakyStore) ListSyncFailures(ctx context.Context, limit int) ([]*aggregate.SyncFailure, error) {
	res, err := s.Store.ListSyncFailures(ctx, limit)
	if fn := s.afterListSyncFailures.Swap(nil); fn != nil {
		(*fn)()
	}
	return res, err
}

func (s *flakyStore) GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	res, err := s.Store.GetTimeEntry(ctx, entryID)
	if fn := s.afterGetTimeEntry.Swap(nil); fn != nil {
		(*fn)()
	}
	return res, err
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyStore) IncrementClientRevenue(ctx context.Context, clientID id.ClientID, delta int64) error {
	if s.broken.Load() {
		return errStoreDown
	}
	return s.Store.IncrementClientRevenue(ctx, clientID, delta)
}

func (s *flakyStore) IncrementClientProjectCount(ctx context.Context, clientID id.ClientID, delta int64) error {
	if s.broken.Load() {
		return errStoreDown
	}
	return s.Store.IncrementClientProjectCount(ctx, clientID, delta)
}

func (s *flakyStore) IncrementProjectTotals(ctx context.Context, projectID id.ProjectID, minutes, earned int64) error {
	if s.broken.Load() {
		return errStoreDown
	}
	return s.Store.IncrementProjectTotals(ctx, projectID, minutes, earned)
}

type harness struct {
	t      *testing.T
	engine *tally.Engine
	store  *flakyStore
	clock  *testClock
	ctx    context.Context
}

func newHarness(t *testing.T, opts ...tally.Option) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		store: &flakyStore{Store: memory.New()},
		clock: &testClock{now: t0},
		ctx:   tally.WithUser(context.Background(), testUser),
	}
	base := []tally.Option{
		tally.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		tally.WithClock(h.clock.Now),
		tally.WithSyncRetry(time.Minute, 3, 1000),
	}
	h.engine = tally.New(h.store, append(base, opts...)...)
	return h
}

func (h *harness) as(userID string) context.Context {
	return tally.WithUser(context.Background(), userID)
}

func (h *harness) client(name string) *client.Client {
	h.t.Helper()
	c, err := h.engine.CreateClient(h.ctx, tally.ClientInput{
		Name:  name,
		Email: "billing@example.com",
	})
	if err != nil {
		h.t.Fatalf("CreateClient: %v", err)
	}
	return c
}

func (h *harness) project(c *client.Client, rate int64) *project.Project {
	h.t.Helper()
	p, err := h.engine.CreateProject(h.ctx, tally.ProjectInput{
		ClientID:   c.ID,
		Name:       "Website",
		Status:     project.StatusInProgress,
		HourlyRate: rate,
	})
	if err != nil {
		h.t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func (h *harness) entry(p *project.Project, start time.Time, d time.Duration) *timeentry.TimeEntry {
	h.t.Helper()
	end := start.Add(d)
	te, err := h.engine.CreateTimeEntry(h.ctx, tally.TimeEntryInput{
		ProjectID:   p.ID,
		Description: "work",
		StartTime:   start,
		EndTime:     &end,
	})
	if err != nil {
		h.t.Fatalf("CreateTimeEntry: %v", err)
	}
	return te
}

func (h *harness) invoice(c *client.Client, status invoice.Status, rate int64, qty string) *invoice.Invoice {
	h.t.Helper()
	inv, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID: c.ID,
		Status:   status,
		LineItems: []tally.LineItemInput{
			{Description: "Consulting", Quantity: decimal.RequireFromString(qty), Rate: rate},
		},
	})
	if err != nil {
		h.t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

func (h *harness) reloadClient(c *client.Client) *client.Client {
	h.t.Helper()
	got, err := h.store.GetClient(context.Background(), c.ID)
	if err != nil {
		h.t.Fatalf("GetClient: %v", err)
	}
	return got
}

func (h *harness) reloadProject(p *project.Project) *project.Project {
	h.t.Helper()
	got, err := h.store.GetProject(context.Background(), p.ID)
	if err != nil {
		h.t.Fatalf("GetProject: %v", err)
	}
	return got
}

func (h *harness) wantProjectTotals(p *project.Project, minutes, earned int64) {
	h.t.Helper()
	got := h.reloadProject(p)
	if got.TotalMinutes != minutes || got.TotalEarned.Amount != earned {
		h.t.Errorf("project totals: got %d min / %d, want %d min / %d",
			got.TotalMinutes, got.TotalEarned.Amount, minutes, earned)
	}
}

func (h *harness) wantRevenue(c *client.Client, want int64) {
	h.t.Helper()
	if got := h.reloadClient(c).TotalRevenue.Amount; got != want {
		h.t.Errorf("client revenue: got %d, want %d", got, want)
	}
}

func timeentryOpts(p *project.Project) timeentry.ListOpts {
	return timeentry.ListOpts{ProjectID: p.ID}
}
