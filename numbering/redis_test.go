package numbering_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/tally/numbering"
)

func redisSequence(t *testing.T) *numbering.RedisSequence {
	t.Helper()
	addr := os.Getenv("TALLY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TALLY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return numbering.NewRedisSequence(rdb, "tally:test:"+strconv.FormatInt(time.Now().UnixNano(), 10)+":")
}

func TestRedisSequence(t *testing.T) {
	ctx := context.Background()
	seq := redisSequence(t)

	if n, err := seq.Peek(ctx, "inv"); err != nil || n != 0 {
		t.Fatalf("peek unused: got %d, %v", n, err)
	}

	a := numbering.New(seq, numbering.WithName("inv"))
	first, err := a.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Text != "INV-00001" {
		t.Errorf("got %s", first.Text)
	}

	ok, err := seq.ReleaseSequence(ctx, "inv", first.Value)
	if err != nil || !ok {
		t.Fatalf("release latest: ok=%v err=%v", ok, err)
	}

	if err := seq.Seed(ctx, "inv", 41); err != nil {
		t.Fatal(err)
	}
	next, _ := a.Next(ctx)
	if next.Text != "INV-00042" {
		t.Errorf("after seed: got %s", next.Text)
	}

	ok, _ = seq.ReleaseSequence(ctx, "inv", 10)
	if ok {
		t.Error("release of a stale number must not decrement")
	}
}
