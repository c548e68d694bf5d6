// Package lock serialises timer starts per user.
package lock

import (
	"context"
	"errors"
)

// ErrNotObtained is returned when a lock could not be acquired in time.
var ErrNotObtained = errors.New("lock: not obtained")

// Locker acquires a named mutual exclusion lock. The returned release
// function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
