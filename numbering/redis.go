package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// releaseScript decrements KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DECR", KEYS[1])
	return 1
end
return 0
`)

// RedisSequence keeps counters in Redis under KeyPrefix + name.
type RedisSequence struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

// NewRedisSequence returns a Sequence backed by INCR. Keys default to the
// "tally:seq:" prefix.
func NewRedisSequence(rdb redis.UniversalClient, keyPrefix string) *RedisSequence {
	if keyPrefix == "" {
		keyPrefix = "tally:seq:"
	}
	return &RedisSequence{rdb: rdb, keyPrefix: keyPrefix}
}

func (s *RedisSequence) NextSequence(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.Incr(ctx, s.keyPrefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("numbering/redis: incr %s: %w", name, err)
	}
	return n, nil
}

func (s *RedisSequence) ReleaseSequence(ctx context.Context, name string, n int64) (bool, error) {
	res, err := releaseScript.Run(ctx, s.rdb, []string{s.keyPrefix + name}, n).Int64()
	if err != nil {
		return false, fmt.Errorf("numbering/redis: release %s: %w", name, err)
	}
	return res == 1, nil
}

// Peek returns the last issued value without incrementing. An unused
// counter reads as zero.
func (s *RedisSequence) Peek(ctx context.Context, name string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.keyPrefix+name).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("numbering/redis: get %s: %w", name, err)
	}
	return n, nil
}

// Seed raises the counter to at least n, for moving an existing sequence
// into Redis. It never lowers the counter.
func (s *RedisSequence) Seed(ctx context.Context, name string, n int64) error {
	key := s.keyPrefix + name
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur >= n {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, n, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("numbering/redis: seed %s: %w", name, err)
	}
	return nil
}
