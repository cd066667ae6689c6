package model

import "time"

// ShortLink is the canonical record. The database owns it; the cache layer
// only holds derived views, so on any conflict this row wins.
type ShortLink struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShortCode string     `gorm:"uniqueIndex" json:"short_code"`
	LongUrl   string     `gorm:"index" json:"long_url"`
	Clicks    int64      `json:"clicks"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the record is past its expiry.
// A nil ExpiresAt means the link never expires.
func (l *ShortLink) Expired() bool {
	return l.ExpiresAt != nil && time.Now().After(*l.ExpiresAt)
}

// CacheTTL returns the time-to-live to use for cache entries derived from
// this record: ExpiresAt - now, or 0 (no expiration) when ExpiresAt is unset.
// The TTL is the only expiry mechanism in the cache; ExpiresAt itself is
// never stored there.
func (l *ShortLink) CacheTTL() time.Duration {
	if l.ExpiresAt == nil {
		return 0
	}
	return time.Until(*l.ExpiresAt)
}
