package tally

import (
	"context"
	"fmt"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
)

// applyDeltas applies derived-total changes after a committed primary
// write. A delta that cannot be applied is queued for retry and never
// reported to the caller: the primary write is the source of truth.
//
// Callers hold aggMu shared from the primary write until applyDeltas
// returns.
func (e *Engine) applyDeltas(ctx context.Context, deltas ...aggregate.Delta) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range deltas {
		if d.Zero() {
			continue
		}
		if err := e.applyDelta(ctx, d); err != nil {
			e.recordSyncFailure(ctx, d, err)
		}
	}
}

func (e *Engine) applyDelta(ctx context.Context, d aggregate.Delta) error {
	target, err := id.Parse(d.TargetID)
	if err != nil {
		return fmt.Errorf("tally: delta target: %w", err)
	}

	switch d.Kind {
	case aggregate.KindClientRevenue:
		return e.store.IncrementClientRevenue(ctx, target, d.Amount)
	case aggregate.KindClientProjects:
		return e.store.IncrementClientProjectCount(ctx, target, d.Count)
	case aggregate.KindProjectTotals:
		return e.store.IncrementProjectTotals(ctx, target, d.Minutes, d.Amount)
	}
	return fmt.Errorf("tally: unknown delta kind %q", d.Kind)
}

func (e *Engine) recordSyncFailure(ctx context.Context, d aggregate.Delta, cause error) {
	now := e.clock()
	f := &aggregate.SyncFailure{
		ID:          id.NewSyncFailureID(),
		Delta:       d,
		Error:       cause.Error(),
		Attempts:    1,
		CreatedAt:   now,
		LastAttempt: now,
	}

	e.logger.Warn("aggregate sync failed",
		"delta", d.String(),
		"error", cause,
	)

	if err := e.store.EnqueueSyncFailure(ctx, f); err != nil {
		e.logger.Error("aggregate sync failure lost, awaiting reconciliation",
			"delta", d.String(),
			"error", err,
		)
	}

	e.plugins.EmitAggregateSyncFailed(ctx, f)
}

// RetryResult counts the outcome of a retry pass.
type RetryResult struct {
	Applied int
	Dropped int
	Pending int
}

// RetrySyncFailures replays queued deltas oldest first. A delta whose
// target no longer exists, or that exhausted its attempts, is dropped and
// left to reconciliation.
//
// Each entry is claimed by bumping its attempt count before it is applied.
// An entry that reconciliation folded in meanwhile is gone and skipped.
func (e *Engine) RetrySyncFailures(ctx context.Context) (RetryResult, error) {
	var res RetryResult

	failures, err := e.store.ListSyncFailures(ctx, e.retryBatch)
	if err != nil {
		return res, err
	}

	for _, f := range failures {
		if err := e.retryLimiter.Wait(ctx); err != nil {
			return res, err
		}
		e.retryOne(ctx, f, &res)
	}

	if res.Applied+res.Dropped+res.Pending > 0 {
		e.logger.Info("sync retry pass",
			"applied", res.Applied,
			"dropped", res.Dropped,
			"pending", res.Pending,
		)
	}
	return res, nil
}

func (e *Engine) retryOne(ctx context.Context, f *aggregate.SyncFailure, res *RetryResult) {
	e.aggMu.Lock()
	defer e.aggMu.Unlock()

	f.Attempts++
	f.LastAttempt = e.clock()
	if err := e.store.UpdateSyncFailure(ctx, f); err != nil {
		if !IsNotFound(err) {
			e.logger.Warn("claim sync failure", "id", f.ID.String(), "error", err)
		}
		return
	}

	applyErr := e.applyDelta(ctx, f.Delta)
	switch {
	case applyErr == nil:
		res.Applied++
		e.forgetSyncFailure(ctx, f)

	case IsNotFound(applyErr):
		res.Dropped++
		e.logger.Info("dropping sync failure for missing target",
			"delta", f.Delta.String(),
		)
		e.forgetSyncFailure(ctx, f)

	case f.Attempts >= e.retryMaxAttempts:
		res.Dropped++
		e.logger.Error("giving up on sync failure",
			"delta", f.Delta.String(),
			"attempts", f.Attempts,
			"error", applyErr,
		)
		e.forgetSyncFailure(ctx, f)

	default:
		res.Pending++
		f.Error = applyErr.Error()
		if err := e.store.UpdateSyncFailure(ctx, f); err != nil {
			e.logger.Warn("update sync failure", "id", f.ID.String(), "error", err)
		}
	}
}

func (e *Engine) forgetSyncFailure(ctx context.Context, f *aggregate.SyncFailure) {
	if err := e.store.DeleteSyncFailure(ctx, f.ID); err != nil && !IsNotFound(err) {
		e.logger.Warn("delete sync failure", "id", f.ID.String(), "error", err)
	}
}
