package tally_test

import (
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/project"
)

func (h *harness) paidAt(c *client.Client, amount int64, at time.Time) {
	h.t.Helper()
	h.clock.Set(at)
	inv := h.invoice(c, invoice.StatusSent, amount, "1")
	if _, err := h.engine.UpdateInvoiceStatus(h.ctx, inv.ID, invoice.StatusPaid, ""); err != nil {
		h.t.Fatalf("mark paid: %v", err)
	}
}

func TestRevenueSeries(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	h.paidAt(c, 1000, time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	h.paidAt(c, 2000, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h.paidAt(c, 3000, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	h.clock.Set(t0)

	series, err := h.engine.GetRevenueSeries(h.ctx, 3)
	if err != nil {
		t.Fatalf("GetRevenueSeries: %v", err)
	}

	want := []struct {
		label   string
		revenue int64
	}{
		{"Jan", 2000},
		{"Feb", 0},
		{"Mar", 3000},
	}
	if len(series) != len(want) {
		t.Fatalf("months: got %d, want %d", len(series), len(want))
	}
	for i, w := range want {
		if series[i].Label != w.label || series[i].Revenue.Amount != w.revenue {
			t.Errorf("month %d: got %s %d, want %s %d", i, series[i].Label, series[i].Revenue.Amount, w.label, w.revenue)
		}
	}

	def, err := h.engine.GetRevenueSeries(h.ctx, 0)
	if err != nil {
		t.Fatalf("default series: %v", err)
	}
	if len(def) != 6 || def[0].Label != "Oct" {
		t.Errorf("default series: got %d months starting %q", len(def), def[0].Label)
	}
}

func TestRevenueSeriesUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	h := newHarness(t, tally.WithLocation(loc))
	c := h.client("Acme")

	// 21:00 UTC on Jan 31 is already February at UTC+5.
	h.paidAt(c, 500, time.Date(2026, 1, 31, 21, 0, 0, 0, time.UTC))
	h.clock.Set(t0)

	series, err := h.engine.GetRevenueSeries(h.ctx, 2)
	if err != nil {
		t.Fatalf("GetRevenueSeries: %v", err)
	}
	if series[0].Label != "Feb" || series[0].Revenue.Amount != 500 {
		t.Errorf("got %s %d, want Feb 500", series[0].Label, series[0].Revenue.Amount)
	}
}

func TestProjectStatusDistribution(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	h.project(c, 0)
	h.project(c, 0)
	if _, err := h.engine.CreateProject(h.ctx, tally.ProjectInput{ClientID: c.ID, Name: "Later"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	dist, err := h.engine.GetProjectStatusDistribution(h.ctx)
	if err != nil {
		t.Fatalf("GetProjectStatusDistribution: %v", err)
	}
	if len(dist) != len(project.Statuses) {
		t.Fatalf("statuses: got %d, want %d", len(dist), len(project.Statuses))
	}

	counts := make(map[project.Status]int64)
	for _, d := range dist {
		counts[d.Status] = d.Count
	}
	if counts[project.StatusInProgress] != 2 || counts[project.StatusPlanning] != 1 || counts[project.StatusCancelled] != 0 {
		t.Errorf("counts: %v", counts)
	}
}

func TestTopClients(t *testing.T) {
	h := newHarness(t)
	small := h.client("Small")
	big := h.client("Big")
	tied := h.client("Tied")

	h.paidAt(small, 1000, t0)
	h.paidAt(big, 9000, t0)
	h.paidAt(tied, 1000, t0)

	top, err := h.engine.GetTopClients(h.ctx, 2)
	if err != nil {
		t.Fatalf("GetTopClients: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top: got %d, want 2", len(top))
	}
	if top[0].Name != "Big" || top[1].Name != "Small" {
		t.Errorf("order: got %s, %s; want Big, Small", top[0].Name, top[1].Name)
	}
}

func TestDashboardStats(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 6000)
	h.entry(p, t0.Add(-3*time.Hour), 100*time.Minute)

	h.paidAt(c, 4000, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	h.paidAt(c, 1500, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	h.clock.Set(t0)
	h.invoice(c, invoice.StatusSent, 2500, "1")
	h.invoice(c, invoice.StatusDraft, 7777, "1")

	d, err := h.engine.GetDashboardStats(h.ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}

	if d.TotalClients != 1 || d.TotalProjects != 1 || d.ActiveProjects != 1 {
		t.Errorf("counts: %d clients, %d projects, %d active", d.TotalClients, d.TotalProjects, d.ActiveProjects)
	}
	if d.TotalRevenue.Amount != 5500 {
		t.Errorf("total revenue: got %d, want 5500", d.TotalRevenue.Amount)
	}
	if d.PendingRevenue.Amount != 2500 {
		t.Errorf("pending revenue: got %d, want 2500", d.PendingRevenue.Amount)
	}
	if d.MonthlyRevenue.Amount != 1500 {
		t.Errorf("monthly revenue: got %d, want 1500", d.MonthlyRevenue.Amount)
	}
	if got := d.TotalHoursTracked.String(); got != "1.7" {
		t.Errorf("hours tracked: got %s, want 1.7", got)
	}
	if len(d.RecentInvoices) != 4 || len(d.RecentProjects) != 1 {
		t.Errorf("recent: %d invoices, %d projects", len(d.RecentInvoices), len(d.RecentProjects))
	}
}
