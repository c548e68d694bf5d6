package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis holds locks in Redis so timer starts are serialised across
// processes sharing a store.
type Redis struct {
	locker  *redislock.Client
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	logger  *slog.Logger
}

// NewRedis returns a Locker using rdb. Locks expire after ttl if the holder
// dies; retries poll every backoff until the context ends.
func NewRedis(rdb redis.UniversalClient, ttl, backoff time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		locker:  redislock.New(rdb),
		prefix:  "tally:lock:",
		ttl:     ttl,
		backoff: backoff,
		logger:  logger,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	l, err := r.locker.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock/redis: obtain %s: %w", key, err)
	}

	return func() {
		if err := l.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("release timer lock", "key", key, "error", err)
		}
	}, nil
}
