package memory

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/types"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := New()

	first := &client.Client{Entity: types.NewEntity(now), ID: id.NewClientID(), UserID: "u", Name: "First", TotalRevenue: types.USD(500)}
	second := &client.Client{Entity: types.NewEntity(now), ID: id.NewClientID(), UserID: "u", Name: "Second", TotalRevenue: types.USD(0)}
	for _, c := range []*client.Client{first, second} {
		if err := src.CreateClient(ctx, c); err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
	}

	inv := &invoice.Invoice{Entity: types.NewEntity(now), ID: id.NewInvoiceID(), UserID: "u", ClientID: first.ID, Number: "INV-00001", Status: invoice.StatusPaid, Total: types.USD(500)}
	if err := src.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	pay := &payment.Payment{Entity: types.NewEntity(now), ID: id.NewPaymentID(), UserID: "u", InvoiceID: inv.ID, Amount: types.USD(500), GatewayRef: "pi_1", Status: payment.StatusCompleted}
	if err := src.CreatePayment(ctx, pay); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := src.NextSequence(ctx, "invoice_number"); err != nil {
		t.Fatalf("NextSequence: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, src.Snapshot()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	snap, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	dst := New()
	if err := dst.Load(snap); err != nil {
		t.Fatalf("Load: %v", err)
	}

	clients, err := dst.ListClients(ctx, client.ListOpts{UserID: "u"})
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	// Newest first.
	if len(clients) != 2 || clients[0].Name != "Second" || clients[1].Name != "First" {
		t.Fatalf("clients: got %d, order lost", len(clients))
	}
	if clients[1].TotalRevenue.Amount != 500 {
		t.Errorf("revenue: got %d, want 500", clients[1].TotalRevenue.Amount)
	}

	if _, err := dst.GetPaymentByGatewayRef(ctx, "pi_1"); err != nil {
		t.Errorf("gateway ref index not rebuilt: %v", err)
	}

	n, err := dst.NextSequence(ctx, "invoice_number")
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if n != 2 {
		t.Errorf("sequence: got %d, want 2", n)
	}
}

func TestLoadReplacesContents(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := &client.Client{ID: id.NewClientID(), UserID: "u", Name: "Gone"}
	if err := s.CreateClient(ctx, c); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	if err := s.Load(&Snapshot{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n, _ := s.CountClients(ctx, client.ListOpts{}); n != 0 {
		t.Errorf("clients after load: got %d, want 0", n)
	}
}
