package aggregate

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	EnqueueSyncFailure(ctx context.Context, f *SyncFailure) error
	// ListSyncFailures returns queued failures oldest first. A limit of 0
	// returns the whole queue.
	ListSyncFailures(ctx context.Context, limit int) ([]*SyncFailure, error)
	// UpdateSyncFailure returns tally.ErrSyncFailureNotFound once the entry
	// has been deleted.
	UpdateSyncFailure(ctx context.Context, f *SyncFailure) error
	DeleteSyncFailure(ctx context.Context, failureID id.SyncFailureID) error
}
