package cache

import (
	"context"
	"time"
)

// Key prefixes for the three cache tiers. Each tier lives under its own
// namespace so operators can inspect or flush one tier without touching
// the others.
const (
	ResolvePrefix = "short:"
	ClickPrefix   = "url:clicks:"
	MetaPrefix    = "url:meta:"
)

func ResolveKey(code string) string {
	return ResolvePrefix + code
}

func ClickKey(code string) string {
	return ClickPrefix + code
}

func MetaKey(code string) string {
	return MetaPrefix + code
}

// Cache is the capability contract the resolution, metadata and click tiers
// need from a backend: per-key get/set with TTL, delete, atomic increment,
// atomic claim-and-clear, and prefix listing. Any key-value store with these
// operations can back the tiers; shared.CacheClient is the Redis
// implementation and Memory is the in-process one.
//
// A ttl of 0 on Set means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	GetDel(ctx context.Context, key string) (string, bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}
