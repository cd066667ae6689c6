package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	expireAt time.Time // zero means never
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// Memory is an in-process Cache backend. It keeps the same semantics as the
// Redis client (lazy TTL eviction, atomic per-key increment) and is used by
// the tests and as a local-dev backend when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if ent.expired(time.Now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	return ent.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: value, expireAt: expireAt}
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	var expireAt time.Time
	ent, ok := m.entries[key]
	if ok && !ent.expired(time.Now()) {
		parsed, err := strconv.ParseInt(ent.value, 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
		expireAt = ent.expireAt
	}

	current += delta
	m.entries[key] = memoryEntry{value: strconv.FormatInt(current, 10), expireAt: expireAt}
	return current, nil
}

func (m *Memory) GetDel(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(m.entries, key)
	if ent.expired(time.Now()) {
		return "", false, nil
	}
	return ent.value, true, nil
}

// Keys supports the single pattern shape the service uses: "prefix*".
func (m *Memory) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var keys []string
	for key, ent := range m.entries {
		if ent.expired(now) {
			delete(m.entries, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
