package flusher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Avishek-7/URL-Shortening-service/cache"
	"github.com/Avishek-7/URL-Shortening-service/repo"
	"github.com/Avishek-7/URL-Shortening-service/shared"
)

// memorySink is an in-memory ClickSink for the tests.
type memorySink struct {
	mu     sync.Mutex
	totals map[string]int64
	known  map[string]bool
	down   bool
}

func newMemorySink(codes ...string) *memorySink {
	known := make(map[string]bool)
	for _, code := range codes {
		known[code] = true
	}
	return &memorySink{totals: make(map[string]int64), known: known}
}

func (s *memorySink) ApplyClickDeltas(ctx context.Context, deltas []repo.ClickDelta) ([]repo.ClickDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return deltas, errors.New("store down")
	}

	var failed []repo.ClickDelta
	for _, d := range deltas {
		if !s.known[d.ShortCode] {
			failed = append(failed, d)
			continue
		}
		s.totals[d.ShortCode] += d.Delta
	}
	return failed, nil
}

func (s *memorySink) total(code string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[code]
}

func newTestFlusher(t *testing.T, sink ClickSink, clicks *cache.ClickAccumulator, c cache.Cache) *Flusher {
	t.Helper()
	t.Setenv("LOG_DIR", t.TempDir())
	logger := shared.NewLogger("test.log", 1, 1, "error", "flusher-test")
	logger.Init()
	return New(sink, clicks, c, logger, nil, time.Minute)
}

func TestReconciliationCycle(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)
	sink := newMemorySink("abc")
	f := newTestFlusher(t, sink, clicks, mem)

	for i := 0; i < 3; i++ {
		clicks.Increment(ctx, "abc")
	}

	f.RunOnce(ctx)

	if got := sink.total("abc"); got != 3 {
		t.Errorf("durable clicks = %d after one cycle, want 3", got)
	}
	if pending := clicks.Pending(ctx, "abc"); pending != 0 {
		t.Errorf("accumulator still holds %d after flush, want 0", pending)
	}
}

func TestNoDoubleApply(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)
	sink := newMemorySink("abc")
	f := newTestFlusher(t, sink, clicks, mem)

	clicks.Increment(ctx, "abc")
	f.RunOnce(ctx)
	f.RunOnce(ctx) // idle cycle, nothing claimed

	if got := sink.total("abc"); got != 1 {
		t.Errorf("durable clicks = %d after idle cycle, want 1", got)
	}
}

func TestStoreFailureLosesAtMostOneCycle(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)
	sink := newMemorySink("abc")
	f := newTestFlusher(t, sink, clicks, mem)

	clicks.Increment(ctx, "abc")
	clicks.Increment(ctx, "abc")

	sink.down = true
	f.RunOnce(ctx) // claimed deltas are lost, job must not crash or retry

	if got := sink.total("abc"); got != 0 {
		t.Errorf("failed flush wrote %d clicks, want 0", got)
	}
	if pending := clicks.Pending(ctx, "abc"); pending != 0 {
		t.Errorf("claimed deltas linger in the accumulator: %d", pending)
	}

	// the next cycle proceeds independently with fresh increments
	sink.down = false
	clicks.Increment(ctx, "abc")
	f.RunOnce(ctx)

	if got := sink.total("abc"); got != 1 {
		t.Errorf("durable clicks = %d after recovery, want exactly the post-failure increment", got)
	}
}

func TestRowMissingIsContained(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)
	sink := newMemorySink("known")
	f := newTestFlusher(t, sink, clicks, mem)

	clicks.Increment(ctx, "known")
	clicks.Increment(ctx, "ghost")

	f.RunOnce(ctx)

	if got := sink.total("known"); got != 1 {
		t.Errorf("known code clicks = %d, want 1", got)
	}
	if got := sink.total("ghost"); got != 0 {
		t.Errorf("ghost code clicks = %d, want 0", got)
	}
}

func TestFlushInvalidatesMetadata(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)
	sink := newMemorySink("abc")
	f := newTestFlusher(t, sink, clicks, mem)

	mem.Set(ctx, cache.MetaKey("abc"), `{"short_code":"abc"}`, 0)
	clicks.Increment(ctx, "abc")

	f.RunOnce(ctx)

	if _, ok, _ := mem.Get(ctx, cache.MetaKey("abc")); ok {
		t.Errorf("metadata entry must be invalidated after its clicks were flushed")
	}
}

func TestBatchingBoundsStoreCalls(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	clicks := cache.NewClickAccumulator(mem)

	codes := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		codes = append(codes, fmt.Sprintf("code%03d", i))
	}

	var calls int
	countingSink := sinkFunc(func(ctx context.Context, deltas []repo.ClickDelta) ([]repo.ClickDelta, error) {
		calls++
		if len(deltas) > defaultBatchSize {
			t.Errorf("batch of %d exceeds the bound %d", len(deltas), defaultBatchSize)
		}
		return nil, nil
	})

	f := newTestFlusher(t, countingSink, clicks, mem)
	for _, code := range codes {
		clicks.Increment(ctx, code)
	}

	f.RunOnce(ctx)

	if calls != 3 {
		t.Errorf("250 codes flushed in %d store calls, want 3 batches", calls)
	}
}

type sinkFunc func(ctx context.Context, deltas []repo.ClickDelta) ([]repo.ClickDelta, error)

func (fn sinkFunc) ApplyClickDeltas(ctx context.Context, deltas []repo.ClickDelta) ([]repo.ClickDelta, error) {
	return fn(ctx, deltas)
}
