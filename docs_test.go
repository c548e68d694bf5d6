package tally_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/store/memory"
)

// TestDocumentationExamples walks the package documentation's quick start
// end to end.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		eng := tally.New(memory.New(),
			tally.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			tally.WithCurrency("usd"),
			tally.WithClock(clock),
			tally.WithReconcileInterval(0),
			tally.WithOverdueSweepInterval(0),
		)

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		ctx = tally.WithUser(ctx, "user_42")

		c, err := eng.CreateClient(ctx, tally.ClientInput{Name: "Acme", Email: "ap@acme.test"})
		if err != nil {
			t.Fatal(err)
		}
		p, err := eng.CreateProject(ctx, tally.ProjectInput{ClientID: c.ID, Name: "Site", HourlyRate: 9000})
		if err != nil {
			t.Fatal(err)
		}

		entry, err := eng.StartTimer(ctx, p.ID, "homepage")
		if err != nil {
			t.Fatal(err)
		}
		now = now.Add(90 * time.Minute)
		entry, err = eng.StopTimer(ctx, entry.ID)
		if err != nil {
			t.Fatal(err)
		}
		if entry.Duration != 90 || entry.Amount.Amount != 13500 {
			t.Errorf("entry: got %d minutes, %v", entry.Duration, entry.Amount)
		}

		inv, err := eng.CreateInvoice(ctx, tally.InvoiceInput{
			ClientID: c.ID,
			LineItems: []tally.LineItemInput{
				{Description: "Design", Quantity: decimal.NewFromInt(2), Rate: 5000},
				{Description: "Hosting", Quantity: decimal.NewFromInt(1), Rate: 3000},
			},
			TaxPercent: decimal.NewFromInt(10),
			Discount:   500,
		})
		if err != nil {
			t.Fatal(err)
		}
		if inv.Number != "INV-00001" || inv.Total.Amount != 13800 {
			t.Errorf("invoice: got %s total %v", inv.Number, inv.Total)
		}

		inv, err = eng.UpdateInvoiceStatus(ctx, inv.ID, invoice.StatusPaid, "bank_transfer")
		if err != nil {
			t.Fatal(err)
		}
		if inv.PaidAt == nil {
			t.Error("paid invoice should carry a paid date")
		}

		c, err = eng.GetClient(ctx, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if c.TotalRevenue.Amount != 13800 || c.ProjectCount != 1 {
			t.Errorf("client aggregates: revenue %v, projects %d", c.TotalRevenue, c.ProjectCount)
		}

		stats, err := eng.GetDashboardStats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.TotalRevenue.Amount != 13800 || stats.TotalHoursTracked.String() != "1.5" {
			t.Errorf("dashboard: revenue %v, hours %s", stats.TotalRevenue, stats.TotalHoursTracked)
		}
	})

	t.Run("ReconcileExample", func(t *testing.T) {
		eng := tally.New(memory.New(), tally.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

		report, err := eng.Reconcile(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Drifts) != 0 {
			t.Errorf("empty ledger should not drift: %+v", report.Drifts)
		}
	})
}
