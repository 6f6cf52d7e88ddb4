package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// Kinds of cached catalog results.
const (
	CacheKindPage  = "page"
	CacheKindCount = "count"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ResultKey is kind:type:page:hash, with the hash taken over the canonical
// query text so equivalent expressions share an entry.
func ResultKey(kind, typeName, canonicalQuery string, page int) string {
	sum := sha256.Sum256([]byte(canonicalQuery))
	return fmt.Sprintf("%s:%s:%d:%s", kind, typeName, page, hex.EncodeToString(sum[:8]))
}

// TypeScope lists the patterns covering every cached result of typeName.
func TypeScope(typeName string) []string {
	return []string{
		fmt.Sprintf("%s:%s:*", CacheKindPage, typeName),
		fmt.Sprintf("%s:%s:*", CacheKindCount, typeName),
	}
}

// AllResults lists the patterns covering every cached result. Schema changes
// use it since inheritance spreads them to subtypes.
func AllResults() []string {
	return []string{CacheKindPage + ":*", CacheKindCount + ":*"}
}

// CacheService fronts the result cache with metrics and a default TTL.
// Backend failures are logged and surfaced, but readers treat them as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. defaultTTL is the catalog's
// cache update interval.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger.Named("cache"), enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key; a non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops every entry matching any of patterns. All patterns are
// attempted even when one fails.
func (s *CacheService) Invalidate(ctx context.Context, patterns ...string) error {
	if !s.Enabled() {
		return nil
	}
	var errs []error
	for _, pattern := range patterns {
		if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readThrough serves key from c when possible and otherwise calls load,
// caching its result. A nil cache always loads.
func readThrough[T any](ctx context.Context, c pageCache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	if c != nil {
		if hit, err := c.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	if c != nil {
		_ = c.Set(ctx, key, value, ttl)
	}
	return value, nil
}
