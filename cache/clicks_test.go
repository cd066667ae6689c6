package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// failingCache simulates an unreachable cache tier.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errCacheDown
}
func (failingCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return errCacheDown
}
func (failingCache) Del(ctx context.Context, keys ...string) error { return errCacheDown }
func (failingCache) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, errCacheDown
}
func (failingCache) GetDel(ctx context.Context, key string) (string, bool, error) {
	return "", false, errCacheDown
}
func (failingCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	return nil, errCacheDown
}

func TestAccumulatorConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	acc := NewClickAccumulator(NewMemory())

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				acc.Increment(ctx, "abc")
			}
		}()
	}
	wg.Wait()

	if pending := acc.Pending(ctx, "abc"); pending != workers*perWorker {
		t.Errorf("Pending = %d, want %d", pending, workers*perWorker)
	}

	drained, err := acc.DrainAll(ctx)
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if drained["abc"] != workers*perWorker {
		t.Errorf("drained %d clicks, want %d", drained["abc"], workers*perWorker)
	}
}

func TestAccumulatorDrainClears(t *testing.T) {
	ctx := context.Background()
	acc := NewClickAccumulator(NewMemory())

	acc.Increment(ctx, "abc")
	acc.Increment(ctx, "xyz")

	first, err := acc.DrainAll(ctx)
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if len(first) != 2 {
		t.Errorf("first drain returned %d codes, want 2", len(first))
	}

	second, err := acc.DrainAll(ctx)
	if err != nil {
		t.Fatalf("DrainAll failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second drain should be empty, got %v", second)
	}

	if pending := acc.Pending(ctx, "abc"); pending != 0 {
		t.Errorf("Pending after drain = %d, want 0", pending)
	}
}

func TestAccumulatorIncrementDuringDrainNotLost(t *testing.T) {
	ctx := context.Background()
	acc := NewClickAccumulator(NewMemory())

	const total = 500

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			acc.Increment(ctx, "abc")
		}
	}()

	var flushed int64
	for {
		drained, err := acc.DrainAll(ctx)
		if err != nil {
			t.Fatalf("DrainAll failed: %v", err)
		}
		flushed += drained["abc"]

		select {
		case <-done:
			final, _ := acc.DrainAll(ctx)
			flushed += final["abc"]
			if flushed != total {
				t.Errorf("flushed %d clicks across drains, want %d", flushed, total)
			}
			return
		default:
		}
	}
}

func TestAccumulatorFallsBackWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	acc := NewClickAccumulator(failingCache{})

	acc.Increment(ctx, "abc")
	acc.Increment(ctx, "abc")

	if pending := acc.Pending(ctx, "abc"); pending != 2 {
		t.Errorf("Pending = %d, want 2 from the local counter", pending)
	}

	drained, err := acc.DrainAll(ctx)
	if err == nil {
		t.Errorf("DrainAll should surface the listing error")
	}
	if drained["abc"] != 2 {
		t.Errorf("local deltas must still be drained, got %d", drained["abc"])
	}
}
