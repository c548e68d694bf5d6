package timeentry

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
)

type Store interface {
	// CreateTimeEntry inserts e. A running entry is refused with
	// tally.ErrTimerRunning when the user already has one.
	CreateTimeEntry(ctx context.Context, e *TimeEntry) error
	GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*TimeEntry, error)
	// GetRunningTimeEntry returns tally.ErrTimeEntryNotFound when the user
	// has no running timer.
	GetRunningTimeEntry(ctx context.Context, userID string) (*TimeEntry, error)
	ListTimeEntries(ctx context.Context, opts ListOpts) ([]*TimeEntry, error)
	// UpdateTimeEntry rewrites e. It returns tally.ErrConflict when the
	// stored entry was stopped or restarted since e was read.
	UpdateTimeEntry(ctx context.Context, e *TimeEntry) error
	// DeleteTimeEntry removes the entry only while its running state still
	// matches running, and returns tally.ErrConflict otherwise.
	DeleteTimeEntry(ctx context.Context, entryID id.TimeEntryID, running bool) error

	// StopTimeEntry closes a running entry. It returns
	// tally.ErrTimerAlreadyStopped if the entry already has an end time.
	StopTimeEntry(ctx context.Context, entryID id.TimeEntryID, stop Stop) error

	DeleteTimeEntriesByProject(ctx context.Context, projectID id.ProjectID) (int64, error)
	// LinkTimeEntries marks entries as billed by invoiceID.
	LinkTimeEntries(ctx context.Context, entryIDs []id.TimeEntryID, invoiceID id.InvoiceID) error
	UnlinkTimeEntries(ctx context.Context, invoiceID id.InvoiceID) error

	// SumTimeEntries totals completed entries only.
	SumTimeEntries(ctx context.Context, opts SumOpts) (Totals, error)
}

// Stop carries the derived fields written by StopTimeEntry.
type Stop struct {
	EndTime  time.Time
	Duration int64
	Amount   int64
}

// ListOpts filters time entry scans. Results are ordered by start time,
// newest first.
type ListOpts struct {
	UserID    string
	ProjectID id.ProjectID
	ClientID  id.ClientID
	InvoiceID id.InvoiceID
	Running   *bool
	// StartFrom and StartTo bound the start time, both inclusive. A zero
	// value leaves that side open.
	StartFrom time.Time
	StartTo   time.Time
	Limit     int
	Offset    int
}

type SumOpts struct {
	UserID    string
	ProjectID id.ProjectID
}

type Totals struct {
	Minutes int64
	Amount  int64
}
