// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/metrics"
	"news-agent/internal/models"
)

// FetchFunc produces a fresh aggregation for a cache miss. The bool reports
// whether the result is degraded.
type FetchFunc func(ctx context.Context) ([]models.Article, bool, error)

// Cache stores aggregation results in Redis keyed by normalized query.
// Concurrent misses for the same key collapse into a single upstream fetch,
// and an expired entry may be served once after an upstream failure.
type Cache struct {
	client *redis.Client
	group  singleflight.Group
	logger logger.Logger
	now    func() time.Time
}

func New(client *redis.Client, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		logger: log.With(map[string]interface{}{"component": "cache"}),
		now:    time.Now,
	}
}

// GetOrFetch returns the cached entry for the query when fresh, otherwise
// fetches, stores and returns a new one. On fetch failure a stale entry is
// served at most once; the next failure for the same key propagates.
func (c *Cache) GetOrFetch(ctx context.Context, query models.NormalizedQuery, ttl time.Duration, fetch FetchFunc) (*models.CacheEntry, error) {
	key := query.Key()

	if entry := c.load(ctx, key); entry != nil && entry.Fresh(c.now()) {
		metrics.CacheHits.WithLabelValues("hit").Inc()
		return entry, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent flight may have refreshed the entry while this call
		// waited on the group.
		if entry := c.load(ctx, key); entry != nil && entry.Fresh(c.now()) {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return entry, nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()

		articles, degraded, fetchErr := fetch(ctx)
		if fetchErr != nil {
			if stale := c.serveStale(ctx, key, ttl); stale != nil {
				return stale, nil
			}
			return nil, fetchErr
		}

		now := c.now()
		entry := &models.CacheEntry{
			Key:       key,
			Articles:  articles,
			FetchedAt: now,
			ExpiresAt: now.Add(ttl),
			Degraded:  degraded,
		}
		c.store(ctx, entry, ttl)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.CacheEntry), nil
}

// Invalidate drops the entry for a query. Errors are logged, not returned:
// a failed invalidation only delays freshness.
func (c *Cache) Invalidate(ctx context.Context, query models.NormalizedQuery) {
	key := query.Key()
	if err := c.client.Del(ctx, key, staleMarker(key)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (c *Cache) load(ctx context.Context, key string) *models.CacheEntry {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		c.client.Del(ctx, key)
		return nil
	}
	return &entry
}

// store keeps the entry in Redis for twice the freshness window so one stale
// generation remains available after expiry. A successful store clears the
// stale-served marker.
func (c *Cache) store(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) {
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache entry marshal failed", map[string]interface{}{
			"key":   entry.Key,
			"error": err.Error(),
		})
		return
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entry.Key, raw, 2*ttl)
	pipe.Del(ctx, staleMarker(entry.Key))
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   entry.Key,
			"error": stderrors.NewCacheStoreFailedError(err).Error(),
		})
	}
}

// serveStale returns the expired entry for key if one exists and has not
// already been served stale. The marker bounds stale serving to a single
// generation per failure streak.
func (c *Cache) serveStale(ctx context.Context, key string, ttl time.Duration) *models.CacheEntry {
	entry := c.load(ctx, key)
	if entry == nil {
		return nil
	}

	set, err := c.client.SetNX(ctx, staleMarker(key), "1", 2*ttl).Result()
	if err != nil || !set {
		return nil
	}

	metrics.CacheHits.WithLabelValues("stale").Inc()
	c.logger.Warn("serving stale cache entry after upstream failure", map[string]interface{}{
		"key":       key,
		"fetchedAt": entry.FetchedAt,
	})
	entry.Degraded = true
	return entry
}

func staleMarker(key string) string {
	return key + ":stale-served"
}
