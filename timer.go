package tally

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

// ActiveTimer is a running entry with its elapsed time.
type ActiveTimer struct {
	Entry   *timeentry.TimeEntry `json:"entry"`
	Elapsed time.Duration        `json:"elapsed"`
}

// StartTimer opens a running entry on a project for the calling user.
// A user has at most one running timer.
func (e *Engine) StartTimer(ctx context.Context, projectID id.ProjectID, description string) (*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if projectID.IsNil() {
		return nil, ValidationError{Field: "project_id", Message: "is required"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, ValidationError{Field: "description", Message: "is required"}
	}

	release, err := e.lockTimer(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := e.store.GetRunningTimeEntry(ctx, userID); err == nil {
		return nil, ErrTimerRunning
	} else if !errors.Is(err, ErrTimeEntryNotFound) {
		return nil, err
	}

	p, err := e.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	entry := &timeentry.TimeEntry{
		Entity:      types.NewEntity(now),
		ID:          id.NewTimeEntryID(),
		UserID:      userID,
		ProjectID:   p.ID,
		ClientID:    p.ClientID,
		Description: description,
		StartTime:   now,
		HourlyRate:  types.NewMoney(p.HourlyRate.Amount, e.currency),
		Billable:    true,
		Amount:      types.Zero(e.currency),
	}

	if err := e.store.CreateTimeEntry(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Debug("timer started",
		"user_id", userID,
		"entry_id", entry.ID.String(),
		"project_id", p.ID.String(),
	)
	e.plugins.EmitTimerStarted(ctx, entry)
	return entry, nil
}

// StopTimer closes a running entry and adds it to its project totals. The
// stop is a compare-and-set on the open end time, so concurrent stops
// count the entry once.
func (e *Engine) StopTimer(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := e.ownedTimeEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Running() {
		return nil, ErrTimerAlreadyStopped
	}

	end := e.clock()
	if end.Before(entry.StartTime) {
		end = entry.StartTime
	}
	entry.EndTime = &end
	entry.Derive()
	entry.UpdatedAt = end

	e.aggMu.RLock()
	if err := e.store.StopTimeEntry(ctx, entryID, timeentry.Stop{
		EndTime:  end,
		Duration: entry.Duration,
		Amount:   entry.Amount.Amount,
	}); err != nil {
		e.aggMu.RUnlock()
		return nil, err
	}
	e.applyDeltas(ctx, aggregate.ProjectTotals(entry.ProjectID, entry.Duration, entry.Amount.Amount, "timer_stopped"))
	e.aggMu.RUnlock()

	e.logger.Debug("timer stopped",
		"user_id", userID,
		"entry_id", entryID.String(),
		"minutes", entry.Duration,
	)
	e.plugins.EmitTimerStopped(ctx, entry)
	return entry, nil
}

// ActiveTimer returns the calling user's running entry, or
// ErrTimeEntryNotFound when the timer is idle.
func (e *Engine) ActiveTimer(ctx context.Context) (*ActiveTimer, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := e.store.GetRunningTimeEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ActiveTimer{Entry: entry, Elapsed: entry.Elapsed(e.clock())}, nil
}

func (e *Engine) lockTimer(ctx context.Context, userID string) (func(), error) {
	release, err := e.locker.Acquire(ctx, "timer:"+userID)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %w", ErrTimerBusy, err)
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}
