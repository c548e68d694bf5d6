package tally_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/types"
)

func TestCreateInvoiceTotalsAndNumbers(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	inv, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID: c.ID,
		LineItems: []tally.LineItemInput{
			{Description: "Design", Quantity: decimal.NewFromInt(10), Rate: 10000},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), Rate: 5000},
		},
		TaxPercent: decimal.NewFromInt(15),
		Discount:   2000,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if inv.Number != "INV-00001" {
		t.Errorf("number: got %q, want INV-00001", inv.Number)
	}
	if inv.Status != invoice.StatusDraft {
		t.Errorf("status: got %s, want draft", inv.Status)
	}
	if inv.Subtotal.Amount != 105000 || inv.TaxAmount.Amount != 15750 || inv.Total.Amount != 118750 {
		t.Errorf("totals: got %d / %d / %d, want 105000 / 15750 / 118750",
			inv.Subtotal.Amount, inv.TaxAmount.Amount, inv.Total.Amount)
	}
	if !inv.IssueDate.Equal(t0) {
		t.Errorf("issue date: got %v, want %v", inv.IssueDate, t0)
	}

	second := h.invoice(c, invoice.StatusSent, 100, "1")
	if second.Number != "INV-00002" {
		t.Errorf("second number: got %q, want INV-00002", second.Number)
	}
}

func TestCreateInvoiceClampsTotal(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	inv, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID:  c.ID,
		LineItems: []tally.LineItemInput{{Description: "Call", Quantity: decimal.NewFromInt(1), Rate: 1000}},
		Discount:  5000,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Total.Amount != 0 {
		t.Errorf("total: got %d, want 0", inv.Total.Amount)
	}
}

func TestCreateInvoiceRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	tests := []struct {
		name  string
		in    tally.InvoiceInput
		field string
	}{
		{
			name:  "paid on create",
			in:    tally.InvoiceInput{ClientID: c.ID, Status: invoice.StatusPaid},
			field: "status",
		},
		{
			name: "negative quantity",
			in: tally.InvoiceInput{ClientID: c.ID, LineItems: []tally.LineItemInput{
				{Description: "x", Quantity: decimal.NewFromInt(-1), Rate: 100},
			}},
			field: "line_items[0].quantity",
		},
		{
			name: "missing description",
			in: tally.InvoiceInput{ClientID: c.ID, LineItems: []tally.LineItemInput{
				{Quantity: decimal.NewFromInt(1), Rate: 100},
			}},
			field: "line_items[0].description",
		},
		{
			name:  "missing client",
			in:    tally.InvoiceInput{},
			field: "client_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateInvoice(h.ctx, tt.in)
			var ve tally.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field: got %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestPaidAddsRevenueOnce(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusSent, 50000, "1")

	paid, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, "bank_transfer")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaidAt == nil || !paid.PaidAt.Equal(t0) {
		t.Errorf("paid at: got %v, want %v", paid.PaidAt, t0)
	}
	if paid.PaymentMethod != "bank_transfer" {
		t.Errorf("payment method: got %q", paid.PaymentMethod)
	}
	h.wantRevenue(c, 50000)

	// Saving paid again changes nothing.
	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("re-save paid: %v", err)
	}
	h.wantRevenue(c, 50000)
}

func TestConcurrentMarkPaid(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusSent, 12345, "1")

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, "cash"); err != nil {
				t.Errorf("mark paid: %v", err)
			}
		}()
	}
	wg.Wait()

	h.wantRevenue(c, 12345)
}

func TestPaidInvoiceIsFrozen(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusDraft, 1000, "3")

	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	for _, to := range []invoice.Status{invoice.StatusDraft, invoice.StatusSent, invoice.StatusOverdue, invoice.StatusCancelled} {
		if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, to, ""); !errors.Is(err, tally.ErrInvalidTransition) {
			t.Errorf("paid -> %s: got %v, want ErrInvalidTransition", to, err)
		}
	}

	notes := "late edit"
	if _, err := h.engine.UpdateInvoice(h.ctx, inv.ID, tally.InvoiceUpdate{Notes: &notes}); !errors.Is(err, tally.ErrInvoiceNotEditable) {
		t.Errorf("edit paid: got %v, want ErrInvoiceNotEditable", err)
	}
	h.wantRevenue(c, 3000)
}

func TestUpdateInvoiceRecomputes(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	inv := h.invoice(c, invoice.StatusDraft, 1000, "1")

	items := []tally.LineItemInput{{Description: "More", Quantity: decimal.RequireFromString("2.5"), Rate: 1000}}
	tax := decimal.NewFromInt(10)
	updated, err := h.engine.UpdateInvoice(h.ctx, inv.ID, tally.InvoiceUpdate{LineItems: &items, TaxPercent: &tax})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if updated.Total.Amount != 2750 {
		t.Errorf("total: got %d, want 2750", updated.Total.Amount)
	}
	if updated.Number != inv.Number {
		t.Errorf("number changed: %q -> %q", inv.Number, updated.Number)
	}
}

func TestDeletePaidInvoiceRemovesRevenue(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	keep := h.invoice(c, invoice.StatusSent, 1000, "1")
	drop := h.invoice(c, invoice.StatusSent, 4000, "1")

	for _, inv := range []*invoice.Invoice{keep, drop} {
		if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
	}
	h.wantRevenue(c, 5000)

	if err := h.engine.DeleteInvoice(h.ctx, drop.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	h.wantRevenue(c, 1000)

	// Deleting an unpaid invoice leaves revenue alone.
	draft := h.invoice(c, invoice.StatusDraft, 9999, "1")
	if err := h.engine.DeleteInvoice(h.ctx, draft.ID); err != nil {
		t.Fatalf("DeleteInvoice draft: %v", err)
	}
	h.wantRevenue(c, 1000)
}

func TestInvoiceLinksTimeEntries(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 10000)
	e1 := h.entry(p, t0, time.Hour)
	e2 := h.entry(p, t0.Add(time.Hour), time.Hour)

	inv, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID:     c.ID,
		ProjectID:    p.ID,
		LineItems:    []tally.LineItemInput{{Description: "Hours", Quantity: decimal.NewFromInt(2), Rate: 10000}},
		TimeEntryIDs: []id.TimeEntryID{e1.ID, e2.ID},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	billed, err := h.engine.InvoiceEntries(h.ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvoiceEntries: %v", err)
	}
	if len(billed) != 2 {
		t.Fatalf("billed entries: got %d, want 2", len(billed))
	}

	_, err = h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID:     c.ID,
		TimeEntryIDs: []id.TimeEntryID{e1.ID},
	})
	if !errors.Is(err, tally.ErrTimeEntryInvoiced) {
		t.Errorf("double billing: got %v, want ErrTimeEntryInvoiced", err)
	}

	if err := h.engine.DeleteInvoice(h.ctx, inv.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	entry, err := h.engine.GetTimeEntry(h.ctx, e1.ID)
	if err != nil {
		t.Fatalf("GetTimeEntry: %v", err)
	}
	if entry.Invoiced {
		t.Error("entry still invoiced after invoice delete")
	}
}

func TestOverdue(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	due := t0.Add(7 * 24 * time.Hour)

	inv, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID:  c.ID,
		Status:    invoice.StatusSent,
		DueDate:   &due,
		LineItems: []tally.LineItemInput{{Description: "x", Quantity: decimal.NewFromInt(1), Rate: 100}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusOverdue, ""); !errors.Is(err, tally.ErrInvalidTransition) {
		t.Errorf("early overdue: got %v, want ErrInvalidTransition", err)
	}
	if n, err := h.engine.SweepOverdue(h.ctx); err != nil || n != 0 {
		t.Errorf("early sweep: got %d, %v", n, err)
	}

	h.clock.Advance(8 * 24 * time.Hour)

	n, err := h.engine.SweepOverdue(h.ctx)
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if n != 1 {
		t.Errorf("swept: got %d, want 1", n)
	}
	got, err := h.engine.GetInvoice(h.ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != invoice.StatusOverdue {
		t.Errorf("status: got %s, want overdue", got.Status)
	}

	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		t.Fatalf("overdue -> paid: %v", err)
	}
	h.wantRevenue(c, 100)
}

func TestCreateInvoiceKeepsNumberWhenRollbackFails(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 6000)
	te := h.entry(p, t0, time.Hour)

	h.store.failLink.Store(true)
	h.store.failInvDelete.Store(true)
	_, err := h.engine.CreateInvoice(h.ctx, tally.InvoiceInput{
		ClientID:     c.ID,
		TimeEntryIDs: []id.TimeEntryID{te.ID},
		LineItems: []tally.LineItemInput{
			{Description: "Build", Quantity: decimal.NewFromInt(1), Rate: 6000},
		},
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("CreateInvoice: got %v, want link failure", err)
	}
	h.store.failLink.Store(false)
	h.store.failInvDelete.Store(false)

	// INV-00001 survived the failed rollback and must not be issued again.
	for _, want := range []string{"INV-00002", "INV-00003", "INV-00004"} {
		if got := h.invoice(c, invoice.StatusDraft, 1000, "1").Number; got != want {
			t.Errorf("number: got %s, want %s", got, want)
		}
	}
}

func TestCreateInvoiceSkipsTakenNumber(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	taken := &invoice.Invoice{
		Entity:   types.NewEntity(t0),
		ID:       id.NewInvoiceID(),
		UserID:   testUser,
		ClientID: c.ID,
		Number:   "INV-00002",
		Status:   invoice.StatusDraft,
		Total:    types.USD(0),
	}
	if err := h.store.CreateInvoice(h.ctx, taken); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	for _, want := range []string{"INV-00001", "INV-00003"} {
		if got := h.invoice(c, invoice.StatusDraft, 1000, "1").Number; got != want {
			t.Errorf("number: got %s, want %s", got, want)
		}
	}
}
