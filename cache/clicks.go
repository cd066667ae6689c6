package cache

import (
	"context"
	"strconv"
	"strings"
)

// ClickAccumulator tracks unflushed click deltas per short code. The primary
// store is the click tier of the cache backend (atomic per-key increments);
// when that tier is unreachable the increment is absorbed by an in-process
// sharded counter instead of being dropped. Deltas stay owned by the
// accumulator until the reconciliation job claims them with DrainAll.
type ClickAccumulator struct {
	cache Cache
	local *ShardedCounter
}

func NewClickAccumulator(cache Cache) *ClickAccumulator {
	return &ClickAccumulator{
		cache: cache,
		local: NewShardedCounter(),
	}
}

// Increment records one click for code. It never fails: a cache error routes
// the increment to the local counter. Callers invoke it off the redirect
// response path.
func (a *ClickAccumulator) Increment(ctx context.Context, code string) {
	if _, err := a.cache.IncrBy(ctx, ClickKey(code), 1); err != nil {
		a.local.Increment(code)
	}
}

// Pending returns the delta not yet flushed for code. Best effort: a cache
// read failure contributes zero from that tier.
func (a *ClickAccumulator) Pending(ctx context.Context, code string) int64 {
	var pending int64
	if val, ok, err := a.cache.Get(ctx, ClickKey(code)); err == nil && ok {
		if n, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			pending = n
		}
	}
	return pending + a.local.Peek(code)
}

// DrainAll claims every tracked delta and clears it. Each cache key is
// claimed with an atomic get-and-delete, so an increment arriving during the
// drain is counted either in this cycle or the next, never lost. The
// returned error reports a failure to list the click tier; deltas drained
// before the failure (and all local ones) are still returned and must be
// flushed by the caller.
func (a *ClickAccumulator) DrainAll(ctx context.Context) (map[string]int64, error) {
	drained := make(map[string]int64)

	keys, err := a.cache.Keys(ctx, ClickPrefix+"*")
	for _, key := range keys {
		val, ok, gerr := a.cache.GetDel(ctx, key)
		if gerr != nil || !ok {
			continue
		}
		n, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil || n == 0 {
			continue
		}
		code := strings.TrimPrefix(key, ClickPrefix)
		drained[code] += n
	}

	for code, n := range a.local.DrainAll() {
		drained[code] += n
	}

	return drained, err
}
