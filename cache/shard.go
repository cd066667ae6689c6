package cache

import (
	"sync"
)

const counterShardCount = 32

// ShardedCounter is an in-process click counter with low lock contention.
// The accumulator falls back to it when the cache tier is unreachable, so
// increments survive a Redis outage until the next drain.
type ShardedCounter struct {
	shards [counterShardCount]counterShard
}

type counterShard struct {
	mu      sync.Mutex
	entries map[string]int64
}

func NewShardedCounter() *ShardedCounter {
	c := &ShardedCounter{}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]int64)
	}
	return c
}

// shardIndex uses inline FNV-1a so shard selection does not allocate.
func (c *ShardedCounter) shardIndex(key string) uint32 {
	const prime32 = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= prime32
	}
	return h % counterShardCount
}

// Increment adds one to the counter for key and returns the new value.
func (c *ShardedCounter) Increment(key string) int64 {
	shard := &c.shards[c.shardIndex(key)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.entries[key]++
	return shard.entries[key]
}

// Peek returns the current value for key without clearing it.
func (c *ShardedCounter) Peek(key string) int64 {
	shard := &c.shards[c.shardIndex(key)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.entries[key]
}

// DrainAll removes and returns every non-zero counter. Each shard map is
// swapped out under its lock, so an increment racing with the drain lands
// either in the returned map or in the fresh map for the next cycle, never
// nowhere.
func (c *ShardedCounter) DrainAll() map[string]int64 {
	drained := make(map[string]int64)
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		detached := shard.entries
		shard.entries = make(map[string]int64)
		shard.mu.Unlock()

		for key, v := range detached {
			if v != 0 {
				drained[key] += v
			}
		}
	}
	return drained
}
