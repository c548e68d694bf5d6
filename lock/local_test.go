package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tally/lock"
)

func TestLocalSerialisesKey(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "user-1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("expected one holder at a time, saw %d", peak)
	}
}

func TestLocalIndependentKeys(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	other, err := l.Acquire(ctx2, "b")
	if err != nil {
		t.Fatalf("different key must not block: %v", err)
	}
	other()
}

func TestLocalContextCancel(t *testing.T) {
	l := lock.NewLocal()
	release, _ := l.Acquire(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	release()
	release()

	again, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
	again()
}
