package service

import "errors"

// Error taxonomy surfaced to the API layer. Reconciliation failures are never
// mapped here; the flusher logs and contains them.
var (
	// ErrInvalidUrl when the destination is not an absolute http(s) url
	ErrInvalidUrl = errors.New("invalid url format")

	// ErrInvalidAlias when a custom alias has characters outside base62 or a bad length
	ErrInvalidAlias = errors.New("invalid custom alias")

	// ErrAliasConflict when the custom alias is already assigned
	ErrAliasConflict = errors.New("custom alias already taken")

	// ErrShortCodeNotFound when no record exists for the code, in cache or store
	ErrShortCodeNotFound = errors.New("short code not found")

	// ErrLinkExpired when the record exists but is past its expires_at
	ErrLinkExpired = errors.New("url has expired")

	// ErrStoreUnavailable when the durable store is unreachable or timed out
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCacheUnavailable when the cache tier is unreachable; requests degrade
	// to direct store access instead of failing
	ErrCacheUnavailable = errors.New("cache unavailable")
)
