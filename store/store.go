// Package store defines the unified persistence contract for Tally.
package store

import (
	"context"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// Store is the unified storage interface for all Tally entities.
//
// Entity methods carry the entity name so the per-package interfaces embed
// without clashing. Increments are atomic in every backend; they are the
// only writers of derived aggregates.
type Store interface {
	client.Store
	project.Store
	timeentry.Store
	invoice.Store
	payment.Store
	aggregate.Store

	// NextSequence increments the named counter and returns the new value.
	NextSequence(ctx context.Context, name string) (int64, error)
	// ReleaseSequence decrements the counter if it still equals n.
	ReleaseSequence(ctx context.Context, name string, n int64) (bool, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
