package sources

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/domain"
)

// CacheConfig contains configuration for the Redis search cache.
type CacheConfig struct {
	RedisURL    string
	DefaultTTL  time.Duration
	MaxRetries  int
	PoolSize    int
	PoolTimeout time.Duration
}

// SearchCache stores normalized adapter responses in Redis so repeated
// queries within the TTL window skip the upstream call entirely.
type SearchCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewSearchCache creates a Redis-backed search cache and verifies
// connectivity.
func NewSearchCache(config CacheConfig) (*SearchCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = 6 * time.Hour
	}

	return &SearchCache{redis: client, defaultTTL: ttl}, nil
}

// cachedSearch is the stored envelope for one adapter response.
type cachedSearch struct {
	Studies   []domain.NormalizedStudy `json:"studies"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Get retrieves a cached response. The second return value reports a hit.
func (c *SearchCache) Get(ctx context.Context, source, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, bool, error) {
	key := c.key(source, query, filters)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get search cache: %w", err)
	}

	var cached cachedSearch
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove the corrupted entry and fall through to a miss.
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Studies, true, nil
}

// Set caches one adapter response.
func (c *SearchCache) Set(ctx context.Context, source, query string, filters domain.AdapterFilters, studies []domain.NormalizedStudy) error {
	key := c.key(source, query, filters)

	cached := cachedSearch{
		Studies:   studies,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal search cache entry: %w", err)
	}

	return c.redis.Set(ctx, key, jsonData, c.defaultTTL).Err()
}

// Ping checks Redis connectivity.
func (c *SearchCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *SearchCache) Close() error {
	return c.redis.Close()
}

// key builds a stable cache key from the source, query, and filter snapshot.
func (c *SearchCache) key(source, query string, filters domain.AdapterFilters) string {
	snapshot, _ := json.Marshal(filters)
	data := fmt.Sprintf("%s:%s:%s", source, query, snapshot)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("search:%s:%x", source, hash[:8])
}

// CachedAdapter is a read-through cache wrapper around a source adapter.
// Cache errors degrade to a direct upstream call, never a failed search.
type CachedAdapter struct {
	inner  domain.SourceAdapter
	cache  *SearchCache
	logger *logrus.Logger
}

// NewCachedAdapter wraps an adapter with the shared search cache.
func NewCachedAdapter(inner domain.SourceAdapter, cache *SearchCache, logger *logrus.Logger) *CachedAdapter {
	return &CachedAdapter{inner: inner, cache: cache, logger: logger}
}

// Name returns the wrapped adapter's source database tag.
func (a *CachedAdapter) Name() string { return a.inner.Name() }

// Search consults the cache before delegating to the wrapped adapter.
func (a *CachedAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	if studies, hit, err := a.cache.Get(ctx, a.inner.Name(), query, filters); err == nil && hit {
		a.logger.WithFields(logrus.Fields{
			"source":  a.inner.Name(),
			"results": len(studies),
		}).Debug("Search cache hit")
		return studies, nil
	} else if err != nil {
		a.logger.WithError(err).WithField("source", a.inner.Name()).Warn("Search cache read failed")
	}

	studies, err := a.inner.Search(ctx, query, filters)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, a.inner.Name(), query, filters, studies); err != nil {
		a.logger.WithError(err).WithField("source", a.inner.Name()).Warn("Search cache write failed")
	}

	return studies, nil
}
