package tally

import (
	"context"
	"fmt"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

const reconcilePage = 500

// Reconcile recomputes every derived total from source records and corrects
// drift with a compensating increment. Queued sync failures for a checked
// target are superseded by the recomputed value and removed with it.
//
// Each page of targets is checked under aggMu held exclusively, so no
// in-process write sits between its primary record and its delta. A value
// that still changes while it is being checked, through another process,
// is skipped and left for the next pass.
func (e *Engine) Reconcile(ctx context.Context) (*aggregate.Report, error) {
	report := &aggregate.Report{StartedAt: e.clock()}

	if err := e.reconcileClients(ctx, report); err != nil {
		return nil, err
	}
	if err := e.reconcileProjects(ctx, report); err != nil {
		return nil, err
	}
	report.FinishedAt = e.clock()

	for _, d := range report.Drifts {
		e.logger.Warn("aggregate drift",
			"kind", string(d.Kind),
			"target_id", d.TargetID,
			"field", d.Field,
			"stored", d.Stored,
			"actual", d.Actual,
			"corrected", d.Corrected,
		)
	}
	e.logger.Info("reconciliation complete",
		"clients", report.ClientsChecked,
		"projects", report.ProjectsChecked,
		"drifts", len(report.Drifts),
		"purged", report.Purged,
	)

	e.plugins.EmitReconciled(ctx, report)
	return report, nil
}

// queue indexes pending sync failures by delta kind and target.
type queue map[string][]*aggregate.SyncFailure

func queueKey(kind aggregate.Kind, target string) string {
	return string(kind) + "|" + target
}

func (e *Engine) loadQueue(ctx context.Context) (queue, error) {
	failures, err := e.store.ListSyncFailures(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("tally: list sync failures: %w", err)
	}
	q := make(queue, len(failures))
	for _, f := range failures {
		k := queueKey(f.Delta.Kind, f.Delta.TargetID)
		q[k] = append(q[k], f)
	}
	return q, nil
}

// supersede drops the queued deltas of kind on target.
func (e *Engine) supersede(ctx context.Context, report *aggregate.Report, q queue, kind aggregate.Kind, target id.ID) {
	k := queueKey(kind, target.String())
	for _, f := range q[k] {
		if err := e.store.DeleteSyncFailure(ctx, f.ID); err != nil && !IsNotFound(err) {
			report.Errors = append(report.Errors, fmt.Sprintf("drop sync failure %s: %v", f.ID, err))
			continue
		}
		report.Purged++
	}
	delete(q, k)
}

func (e *Engine) reconcileClients(ctx context.Context, report *aggregate.Report) error {
	for offset := 0; ; offset += reconcilePage {
		clients, err := e.store.ListClients(ctx, client.ListOpts{Limit: reconcilePage, Offset: offset})
		if err != nil {
			return err
		}
		if err := e.reconcileClientPage(ctx, report, clients); err != nil {
			return err
		}
		if len(clients) < reconcilePage {
			return nil
		}
	}
}

func (e *Engine) reconcileClientPage(ctx context.Context, report *aggregate.Report, clients []*client.Client) error {
	e.aggMu.Lock()
	defer e.aggMu.Unlock()

	q, err := e.loadQueue(ctx)
	if err != nil {
		return err
	}

	for _, listed := range clients {
		report.ClientsChecked++

		c, err := e.store.GetClient(ctx, listed.ID)
		if err != nil {
			continue
		}
		revenue, err := e.store.SumInvoiceTotals(ctx, invoice.SumOpts{
			ClientID: c.ID,
			Statuses: []invoice.Status{invoice.StatusPaid},
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("client %s revenue: %v", c.ID, err))
			continue
		}
		count, err := e.store.CountProjects(ctx, project.ListOpts{ClientID: c.ID})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("client %s projects: %v", c.ID, err))
			continue
		}

		after, err := e.store.GetClient(ctx, c.ID)
		if err != nil {
			continue
		}
		if after.TotalRevenue.Amount != c.TotalRevenue.Amount || after.ProjectCount != c.ProjectCount {
			continue
		}

		corrected := true
		if revenue != c.TotalRevenue.Amount {
			d := aggregate.Drift{
				Kind:     aggregate.KindClientRevenue,
				TargetID: c.ID.String(),
				Name:     c.Name,
				Field:    "total_revenue",
				Stored:   c.TotalRevenue.Amount,
				Actual:   revenue,
			}
			d.Corrected = e.correct(ctx, report, aggregate.ClientRevenue(c.ID, d.Diff(), "reconcile"))
			corrected = d.Corrected
			report.Drifts = append(report.Drifts, d)
		}
		if corrected {
			e.supersede(ctx, report, q, aggregate.KindClientRevenue, c.ID)
		}

		corrected = true
		if count != c.ProjectCount {
			d := aggregate.Drift{
				Kind:     aggregate.KindClientProjects,
				TargetID: c.ID.String(),
				Name:     c.Name,
				Field:    "project_count",
				Stored:   c.ProjectCount,
				Actual:   count,
			}
			d.Corrected = e.correct(ctx, report, aggregate.ClientProjects(c.ID, d.Diff(), "reconcile"))
			corrected = d.Corrected
			report.Drifts = append(report.Drifts, d)
		}
		if corrected {
			e.supersede(ctx, report, q, aggregate.KindClientProjects, c.ID)
		}
	}
	return nil
}

func (e *Engine) reconcileProjects(ctx context.Context, report *aggregate.Report) error {
	for offset := 0; ; offset += reconcilePage {
		projects, err := e.store.ListProjects(ctx, project.ListOpts{Limit: reconcilePage, Offset: offset})
		if err != nil {
			return err
		}
		if err := e.reconcileProjectPage(ctx, report, projects); err != nil {
			return err
		}
		if len(projects) < reconcilePage {
			return nil
		}
	}
}

func (e *Engine) reconcileProjectPage(ctx context.Context, report *aggregate.Report, projects []*project.Project) error {
	e.aggMu.Lock()
	defer e.aggMu.Unlock()

	q, err := e.loadQueue(ctx)
	if err != nil {
		return err
	}

	for _, listed := range projects {
		report.ProjectsChecked++

		p, err := e.store.GetProject(ctx, listed.ID)
		if err != nil {
			continue
		}
		totals, err := e.store.SumTimeEntries(ctx, timeentry.SumOpts{ProjectID: p.ID})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("project %s totals: %v", p.ID, err))
			continue
		}

		after, err := e.store.GetProject(ctx, p.ID)
		if err != nil {
			continue
		}
		if after.TotalMinutes != p.TotalMinutes || after.TotalEarned.Amount != p.TotalEarned.Amount {
			continue
		}

		if totals.Minutes == p.TotalMinutes && totals.Amount == p.TotalEarned.Amount {
			e.supersede(ctx, report, q, aggregate.KindProjectTotals, p.ID)
			continue
		}

		fix := aggregate.ProjectTotals(p.ID, totals.Minutes-p.TotalMinutes, totals.Amount-p.TotalEarned.Amount, "reconcile")
		corrected := e.correct(ctx, report, fix)
		if totals.Minutes != p.TotalMinutes {
			report.Drifts = append(report.Drifts, aggregate.Drift{
				Kind:      aggregate.KindProjectTotals,
				TargetID:  p.ID.String(),
				Name:      p.Name,
				Field:     "total_minutes",
				Stored:    p.TotalMinutes,
				Actual:    totals.Minutes,
				Corrected: corrected,
			})
		}
		if totals.Amount != p.TotalEarned.Amount {
			report.Drifts = append(report.Drifts, aggregate.Drift{
				Kind:      aggregate.KindProjectTotals,
				TargetID:  p.ID.String(),
				Name:      p.Name,
				Field:     "total_earned",
				Stored:    p.TotalEarned.Amount,
				Actual:    totals.Amount,
				Corrected: corrected,
			})
		}
		if corrected {
			e.supersede(ctx, report, q, aggregate.KindProjectTotals, p.ID)
		}
	}
	return nil
}

func (e *Engine) correct(ctx context.Context, report *aggregate.Report, d aggregate.Delta) bool {
	if err := e.applyDelta(ctx, d); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("correct %s: %v", d, err))
		return false
	}
	return true
}
