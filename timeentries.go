package tally

import (
	"context"
	"slices"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

// TimeEntryInput describes a manually entered interval. A nil EndTime
// creates a running entry, subject to the one-timer-per-user rule.
type TimeEntryInput struct {
	ProjectID   id.ProjectID `json:"project_id"`
	Description string       `json:"description" validate:"required,max=1000"`
	StartTime   time.Time    `json:"start_time" validate:"required"`
	EndTime     *time.Time   `json:"end_time"`
	Billable    *bool        `json:"billable"`
	Tags        []string     `json:"tags" validate:"max=20,dive,required,max=50"`
}

func (in TimeEntryInput) check() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.ProjectID.IsNil() {
		return ValidationError{Field: "project_id", Message: "is required"}
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return ValidationError{Field: "end_time", Message: "must not be before start_time"}
	}
	return nil
}

// CreateTimeEntry records an interval on a project with the project's
// current rate. A completed entry adds to the project totals.
func (e *Engine) CreateTimeEntry(ctx context.Context, in TimeEntryInput) (*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}

	if in.EndTime == nil {
		release, err := e.lockTimer(ctx, userID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	p, err := e.ownedProject(ctx, userID, in.ProjectID)
	if err != nil {
		return nil, err
	}

	entry := &timeentry.TimeEntry{
		Entity:      types.NewEntity(e.clock()),
		ID:          id.NewTimeEntryID(),
		UserID:      userID,
		ProjectID:   p.ID,
		ClientID:    p.ClientID,
		Description: in.Description,
		StartTime:   in.StartTime.UTC(),
		HourlyRate:  types.NewMoney(p.HourlyRate.Amount, e.currency),
		Billable:    in.Billable == nil || *in.Billable,
		Tags:        slices.Clone(in.Tags),
	}
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		entry.EndTime = &end
	}
	entry.Derive()

	e.aggMu.RLock()
	if err := e.store.CreateTimeEntry(ctx, entry); err != nil {
		e.aggMu.RUnlock()
		return nil, err
	}
	if !entry.Running() {
		e.applyDeltas(ctx, aggregate.ProjectTotals(entry.ProjectID, entry.Duration, entry.Amount.Amount, "time_entry_created"))
	}
	e.aggMu.RUnlock()

	if entry.Running() {
		e.plugins.EmitTimerStarted(ctx, entry)
	}
	return entry, nil
}

// GetTimeEntry returns an entry owned by the calling user.
func (e *Engine) GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return e.ownedTimeEntry(ctx, userID, entryID)
}

// ListTimeEntries lists the calling user's entries, latest start first.
func (e *Engine) ListTimeEntries(ctx context.Context, opts timeentry.ListOpts) ([]*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	opts.UserID = userID
	return e.store.ListTimeEntries(ctx, opts)
}

// UpdateTimeEntry rewrites an entry and applies the change in its
// contribution. Moving to another project subtracts the old contribution
// there, adds the new one to the target and captures the target's rate.
//
// A running entry keeps running; use StopTimer to close it. A completed
// entry cannot be reopened.
func (e *Engine) UpdateTimeEntry(ctx context.Context, entryID id.TimeEntryID, in TimeEntryInput) (*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}

	old, err := e.ownedTimeEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	switch {
	case old.Running() && in.EndTime != nil:
		return nil, ValidationError{Field: "end_time", Message: "stop the running timer instead"}
	case !old.Running() && in.EndTime == nil:
		return nil, ValidationError{Field: "end_time", Message: "is required for a completed entry"}
	}

	updated := *old
	updated.Description = in.Description
	updated.StartTime = in.StartTime.UTC()
	updated.Tags = slices.Clone(in.Tags)
	if in.Billable != nil {
		updated.Billable = *in.Billable
	}
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		updated.EndTime = &end
	}

	moved := old.ProjectID.String() != in.ProjectID.String()
	if moved {
		p, err := e.ownedProject(ctx, userID, in.ProjectID)
		if err != nil {
			return nil, err
		}
		updated.ProjectID = p.ID
		updated.ClientID = p.ClientID
		updated.HourlyRate = types.NewMoney(p.HourlyRate.Amount, e.currency)
	}
	updated.Derive()
	updated.Touch(e.clock())

	e.aggMu.RLock()
	defer e.aggMu.RUnlock()
	if err := e.store.UpdateTimeEntry(ctx, &updated); err != nil {
		return nil, err
	}

	oldMin, oldAmt := old.Contribution()
	newMin, newAmt := updated.Contribution()
	if moved {
		e.applyDeltas(ctx,
			aggregate.ProjectTotals(old.ProjectID, -oldMin, -oldAmt, "time_entry_moved"),
			aggregate.ProjectTotals(updated.ProjectID, newMin, newAmt, "time_entry_moved"),
		)
	} else {
		e.applyDeltas(ctx, aggregate.ProjectTotals(updated.ProjectID, newMin-oldMin, newAmt-oldAmt, "time_entry_updated"))
	}

	return &updated, nil
}

// DeleteTimeEntry removes an entry. A completed entry's contribution is
// subtracted; deleting a running entry just clears the timer. The delete
// fails with ErrConflict when the entry was stopped after it was read.
func (e *Engine) DeleteTimeEntry(ctx context.Context, entryID id.TimeEntryID) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	entry, err := e.ownedTimeEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}

	e.aggMu.RLock()
	defer e.aggMu.RUnlock()
	if err := e.store.DeleteTimeEntry(ctx, entryID, entry.Running()); err != nil {
		return err
	}

	minutes, earned := entry.Contribution()
	e.applyDeltas(ctx, aggregate.ProjectTotals(entry.ProjectID, -minutes, -earned, "time_entry_deleted"))
	return nil
}

func (e *Engine) ownedTimeEntry(ctx context.Context, userID string, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	entry, err := e.store.GetTimeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrTimeEntryNotFound
	}
	return entry, nil
}
