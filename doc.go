// Package tally keeps a freelancer's business ledger consistent.
//
// Tally is a library, not a service. It owns every write that touches a
// derived total and provides:
//
//   - Client revenue, client project counts and project hours/earnings
//     maintained with O(1) delta updates
//   - Monotonic, never-reused invoice numbers (INV-00001)
//   - Invoice totals computed server-side with half-even rounding
//   - An invoice status machine that credits revenue exactly once
//   - One running timer per user
//   - Revenue series, project status and top client reports
//   - A reconciliation pass that finds and corrects drift
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	eng := tally.New(memory.New(), tally.WithCurrency("usd"))
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// Every operation acts for the user carried by the context:
//
//	ctx = tally.WithUser(ctx, "user_42")
//
//	c, err := eng.CreateClient(ctx, tally.ClientInput{Name: "Acme", Email: "ap@acme.test"})
//	p, err := eng.CreateProject(ctx, tally.ProjectInput{ClientID: c.ID, Name: "Site", HourlyRate: 9000})
//
//	entry, err := eng.StartTimer(ctx, p.ID, "homepage")
//	entry, err = eng.StopTimer(ctx, entry.ID)
//
//	inv, err := eng.CreateInvoice(ctx, tally.InvoiceInput{
//	    ClientID:  c.ID,
//	    LineItems: []tally.LineItemInput{{Description: "Design", Quantity: decimal.NewFromInt(2), Rate: 5000}},
//	})
//	inv, err = eng.UpdateInvoiceStatus(ctx, inv.ID, invoice.StatusPaid, "bank_transfer")
//
// # Consistency
//
// The primary write is always the source of truth. When an aggregate
// update fails after it, the delta is logged and queued as an
// AggregateSyncFailure; a background worker replays the queue and a
// periodic reconciliation pass recomputes every aggregate from source
// records.
//
// # Money
//
// Amounts are int64 minor units (cents for USD). Fractional intermediate
// values use shopspring/decimal and are rounded once.
//
// # TypeID
//
// All entities use TypeID identifiers:
//
//	cli_01h2xcejqtf2nbrexx3vqjhp41   // Client ID
//	proj_01h2xcejqtf2nbrexx3vqjhp41  // Project ID
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
//	te_01h455vb4pex5vsknk084sn02q    // Time entry ID
package tally
