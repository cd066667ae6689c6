package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Avishek-7/URL-Shortening-service/cache"
	"github.com/Avishek-7/URL-Shortening-service/model"
	"github.com/Avishek-7/URL-Shortening-service/shared"
	"github.com/Avishek-7/URL-Shortening-service/util"
)

const defaultStoreTimeout = 3 * time.Second

// LinkStore is what the service consumes from the durable store adapter.
// repo.ShortLinkRepo is the Postgres implementation; the tests use an
// in-memory one.
type LinkStore interface {
	Insert(ctx context.Context, link *model.ShortLink) error
	InsertWithGeneratedCode(ctx context.Context, link *model.ShortLink, codeFor func(id int64) string) error
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
	FindByLongUrl(ctx context.Context, longUrl string) (*model.ShortLink, error)
}

// Metadata is the merged view served by GetMetadata. ExpiresAt is nil either
// when the link never expires or when the answer came from the metadata
// cache, which deliberately does not store it; the API treats nil as
// "unknown".
type Metadata struct {
	LongUrl   string     `json:"long_url"`
	ShortCode string     `json:"short_code"`
	Clicks    int64      `json:"clicks"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// metaPayload is what the metadata cache stores: static fields plus the
// durable click total at population time. expires_at is never part of it,
// the key TTL is the only expiry truth in the cache.
type metaPayload struct {
	LongUrl   string    `json:"long_url"`
	ShortCode string    `json:"short_code"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// TierMetrics reports cache behavior per tier ("resolve", "meta"). All
// methods tolerate a nil receiver so tests can skip wiring prometheus.
type TierMetrics struct {
	Hit   *prometheus.CounterVec
	Miss  *prometheus.CounterVec
	Fault *prometheus.CounterVec
}

func (m *TierMetrics) hit(tier string) {
	if m != nil && m.Hit != nil {
		m.Hit.WithLabelValues(tier).Inc()
	}
}

func (m *TierMetrics) miss(tier string) {
	if m != nil && m.Miss != nil {
		m.Miss.WithLabelValues(tier).Inc()
	}
}

func (m *TierMetrics) fault(tier string) {
	if m != nil && m.Fault != nil {
		m.Fault.WithLabelValues(tier).Inc()
	}
}

type UrlService struct {
	store        LinkStore
	cache        cache.Cache
	clicks       *cache.ClickAccumulator
	logger       *shared.Logger
	metrics      *TierMetrics
	storeTimeout time.Duration
}

func NewUrlService(store LinkStore, c cache.Cache, clicks *cache.ClickAccumulator, logger *shared.Logger, metrics *TierMetrics) *UrlService {
	return &UrlService{
		store:        store,
		cache:        c,
		clicks:       clicks,
		logger:       logger,
		metrics:      metrics,
		storeTimeout: defaultStoreTimeout,
	}
}

// CreateShortLink persists a new link and populates the caches. With no
// alias the code is the base62 encoding of the row id; a custom alias is
// used verbatim after a uniqueness check. When the same destination was
// already shortened (and no alias or expiry is requested) the existing
// record is returned instead of inserting a duplicate.
func (s *UrlService) CreateShortLink(ctx context.Context, longUrl string, alias string, expireInDays int) (*model.ShortLink, error) {
	if !util.IsUrlValid(longUrl) {
		return nil, ErrInvalidUrl
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if alias == "" && expireInDays == 0 {
		existing, err := s.store.FindByLongUrl(sctx, longUrl)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	link := &model.ShortLink{LongUrl: longUrl}
	if expireInDays > 0 {
		expiresAt := time.Now().Add(time.Duration(expireInDays) * 24 * time.Hour)
		link.ExpiresAt = &expiresAt
	}

	if alias != "" {
		if !util.IsAliasValid(alias) {
			return nil, ErrInvalidAlias
		}
		taken, err := s.store.FindByCode(sctx, alias)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if taken != nil {
			return nil, ErrAliasConflict
		}

		link.ShortCode = alias
		if err := s.store.Insert(sctx, link); err != nil {
			// The unique index backstops the race between the check and
			// the insert.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrAliasConflict
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	} else {
		if err := s.store.InsertWithGeneratedCode(sctx, link, util.Base62Encode); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	s.populateCaches(ctx, link)
	return link, nil
}

// Resolve returns the destination for code. A resolution-cache hit is served
// as-is: the entry TTL was derived from the durable expiry at write time, so
// no re-validation is needed. On a miss the store is read, expiry is
// checked, and the caches are repopulated.
func (s *UrlService) Resolve(ctx context.Context, code string) (string, error) {
	key := cache.ResolveKey(code)

	longUrl, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheFault("resolve", err)
	} else if ok {
		s.metrics.hit("resolve")
		return longUrl, nil
	} else {
		s.metrics.miss("resolve")
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	link, err := s.store.FindByCode(sctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if link == nil {
		return "", ErrShortCodeNotFound
	}

	if link.Expired() {
		if derr := s.cache.Del(ctx, key); derr != nil {
			s.cacheFault("resolve", derr)
		}
		return "", ErrLinkExpired
	}

	s.populateCaches(ctx, link)
	return link.LongUrl, nil
}

// RecordClick registers one click for code. Fire and forget: callers run it
// off the redirect response path and it never fails.
func (s *UrlService) RecordClick(ctx context.Context, code string) {
	s.clicks.Increment(ctx, code)
}

// GetMetadata serves the descriptive view of a link. On a metadata-cache hit
// the static fields come from the cache and ExpiresAt is reported as
// unknown; only a miss reads the durable record and re-populates the cache.
// The click total always merges the unflushed delta still held by the
// accumulator.
func (s *UrlService) GetMetadata(ctx context.Context, code string) (*Metadata, error) {
	// The pending delta is read after the snapshot: a flush landing between
	// the two reads can only undercount transiently, never double-count
	// already-flushed clicks.
	raw, ok, err := s.cache.Get(ctx, cache.MetaKey(code))
	if err != nil {
		s.cacheFault("meta", err)
	} else if ok {
		var payload metaPayload
		if jerr := json.Unmarshal([]byte(raw), &payload); jerr == nil {
			s.metrics.hit("meta")
			return &Metadata{
				LongUrl:   payload.LongUrl,
				ShortCode: payload.ShortCode,
				Clicks:    payload.Clicks + s.clicks.Pending(ctx, code),
				CreatedAt: payload.CreatedAt,
			}, nil
		}
		s.logger.Warn("BadMetaPayload", zap.String("code", code))
	} else {
		s.metrics.miss("meta")
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	link, err := s.store.FindByCode(sctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if link == nil {
		return nil, ErrShortCodeNotFound
	}
	if link.Expired() {
		return nil, ErrLinkExpired
	}

	s.setMetaCache(ctx, link)
	return &Metadata{
		LongUrl:   link.LongUrl,
		ShortCode: link.ShortCode,
		Clicks:    link.Clicks + s.clicks.Pending(ctx, code),
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
	}, nil
}

// populateCaches writes the resolution and metadata entries for link with a
// TTL mirroring the durable expiry. Best effort and idempotent: concurrent
// lookups racing on the same miss all write the same values.
func (s *UrlService) populateCaches(ctx context.Context, link *model.ShortLink) {
	ttl := link.CacheTTL()
	if link.ExpiresAt != nil && ttl <= 0 {
		return
	}

	if err := s.cache.Set(ctx, cache.ResolveKey(link.ShortCode), link.LongUrl, ttl); err != nil {
		s.cacheFault("resolve", err)
	}
	s.setMetaCache(ctx, link)
}

func (s *UrlService) setMetaCache(ctx context.Context, link *model.ShortLink) {
	ttl := link.CacheTTL()
	if link.ExpiresAt != nil && ttl <= 0 {
		return
	}

	payload, err := json.Marshal(metaPayload{
		LongUrl:   link.LongUrl,
		ShortCode: link.ShortCode,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.MetaKey(link.ShortCode), string(payload), ttl); err != nil {
		s.cacheFault("meta", err)
	}
}

// cacheFault logs a cache-tier failure. The request carries on against the
// store: the cache is a performance layer, not a correctness dependency.
func (s *UrlService) cacheFault(tier string, err error) {
	s.metrics.fault(tier)
	s.logger.Warn("CacheUnavailable", zap.String("tier", tier), zap.Error(fmt.Errorf("%w: %v", ErrCacheUnavailable, err)))
}
