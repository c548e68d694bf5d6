package tally

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/report"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

const (
	defaultRevenueMonths = 6
	maxRevenueMonths     = 120
	defaultTopClients    = 5
	recentItems          = 5
)

// GetRevenueSeries returns paid revenue for the trailing months calendar
// months, oldest first and ending with the current month. Months without
// paid invoices report zero.
func (e *Engine) GetRevenueSeries(ctx context.Context, months int) ([]report.MonthlyRevenue, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = defaultRevenueMonths
	}
	if months > maxRevenueMonths {
		return nil, ValidationError{Field: "months", Message: "must be at most 120"}
	}

	current := monthStart(e.now().In(e.loc))
	series := make([]report.MonthlyRevenue, months)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range months {
		start := current.AddDate(0, i-months+1, 0)
		end := start.AddDate(0, 1, 0)
		g.Go(func() error {
			total, err := e.store.SumInvoiceTotals(gctx, invoice.SumOpts{
				UserID:   userID,
				Statuses: []invoice.Status{invoice.StatusPaid},
				PaidFrom: start.UTC(),
				PaidTo:   end.UTC(),
			})
			if err != nil {
				return err
			}
			series[i] = report.MonthlyRevenue{
				Month:   start,
				Label:   start.Format("Jan"),
				Revenue: types.NewMoney(total, e.currency),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return series, nil
}

// GetProjectStatusDistribution counts the user's projects in every status,
// including the empty ones.
func (e *Engine) GetProjectStatusDistribution(ctx context.Context) ([]report.StatusCount, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	dist := make([]report.StatusCount, len(project.Statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, status := range project.Statuses {
		g.Go(func() error {
			n, err := e.store.CountProjects(gctx, project.ListOpts{UserID: userID, Status: status})
			if err != nil {
				return err
			}
			dist[i] = report.StatusCount{Status: status, Count: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dist, nil
}

// GetTopClients ranks the user's clients by lifetime revenue, ties in
// creation order. limit defaults to 5.
func (e *Engine) GetTopClients(ctx context.Context, limit int) ([]report.ClientRevenue, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTopClients
	}

	clients, err := e.store.ListClients(ctx, client.ListOpts{
		UserID:    userID,
		ByRevenue: true,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	top := make([]report.ClientRevenue, len(clients))
	for i, c := range clients {
		top[i] = report.ClientRevenue{
			ClientID:     c.ID,
			Name:         c.Name,
			Company:      c.Company,
			Revenue:      types.NewMoney(c.TotalRevenue.Amount, e.currency),
			ProjectCount: c.ProjectCount,
		}
	}
	return top, nil
}

// GetDashboardStats gathers the headline figures of the user's ledger.
func (e *Engine) GetDashboardStats(ctx context.Context) (*report.Dashboard, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	d := &report.Dashboard{GeneratedAt: now.UTC()}
	var revenue, pending, monthly int64
	var tracked timeentry.Totals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalClients, err = e.store.CountClients(gctx, client.ListOpts{UserID: userID, Status: client.StatusActive})
		return err
	})
	g.Go(func() (err error) {
		d.TotalProjects, err = e.store.CountProjects(gctx, project.ListOpts{UserID: userID})
		return err
	})
	g.Go(func() (err error) {
		d.ActiveProjects, err = e.store.CountProjects(gctx, project.ListOpts{UserID: userID, Status: project.StatusInProgress})
		return err
	})
	g.Go(func() (err error) {
		revenue, err = e.store.SumInvoiceTotals(gctx, invoice.SumOpts{
			UserID:   userID,
			Statuses: []invoice.Status{invoice.StatusPaid},
		})
		return err
	})
	g.Go(func() (err error) {
		pending, err = e.store.SumInvoiceTotals(gctx, invoice.SumOpts{
			UserID:   userID,
			Statuses: []invoice.Status{invoice.StatusSent, invoice.StatusOverdue},
		})
		return err
	})
	g.Go(func() (err error) {
		monthly, err = e.store.SumInvoiceTotals(gctx, invoice.SumOpts{
			UserID:   userID,
			Statuses: []invoice.Status{invoice.StatusPaid},
			PaidFrom: monthStart(now.In(e.loc)).UTC(),
		})
		return err
	})
	g.Go(func() (err error) {
		tracked, err = e.store.SumTimeEntries(gctx, timeentry.SumOpts{UserID: userID})
		return err
	})
	g.Go(func() (err error) {
		d.RecentInvoices, err = e.store.ListInvoices(gctx, invoice.ListOpts{UserID: userID, Limit: recentItems})
		return err
	})
	g.Go(func() (err error) {
		d.RecentProjects, err = e.store.ListProjects(gctx, project.ListOpts{UserID: userID, Limit: recentItems})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.TotalRevenue = types.NewMoney(revenue, e.currency)
	d.PendingRevenue = types.NewMoney(pending, e.currency)
	d.MonthlyRevenue = types.NewMoney(monthly, e.currency)
	d.TotalHoursTracked = types.Hours(tracked.Minutes, 1)
	return d, nil
}

// GetReport gathers the dashboard and every chart for exporters.
func (e *Engine) GetReport(ctx context.Context, months, topClients int) (*report.Bundle, error) {
	b := &report.Bundle{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.Dashboard, err = e.GetDashboardStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Revenue, err = e.GetRevenueSeries(gctx, months)
		return err
	})
	g.Go(func() (err error) {
		b.Distribution, err = e.GetProjectStatusDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.TopClients, err = e.GetTopClients(gctx, topClients)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
