// internal/cache/cache_test.go
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, logger.NewNoOpLogger()), mr
}

func testQuery() models.NormalizedQuery {
	return models.NormalizedQuery{Kind: models.IntentHeadlines, Region: "us"}
}

func testArticles() []models.Article {
	return []models.Article{
		{Title: "one", URL: "https://e.com/1", Source: "A", PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func fetchCounting(counter *int32, articles []models.Article, err error) FetchFunc {
	return func(ctx context.Context) ([]models.Article, bool, error) {
		atomic.AddInt32(counter, 1)
		if err != nil {
			return nil, false, err
		}
		return articles, false, nil
	}
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	entry, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)
	assert.Len(t, entry.Articles, 1)
	assert.False(t, entry.Degraded)

	entry2, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, errors.New("must not be called")))
	require.NoError(t, err)
	assert.Equal(t, entry.Articles, entry2.Articles)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)

	now = now.Add(90 * time.Second)

	_, err = c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_ConcurrentMissesCollapse(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	slowFetch := func(ctx context.Context) ([]models.Article, bool, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return testArticles(), false, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, slowFetch)
			assert.NoError(t, err)
			assert.Len(t, entry.Articles, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_ServesStaleOnceOnFailure(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)

	now = now.Add(90 * time.Second)
	upstreamDown := stderrors.NewAggregateUnavailableError(3)

	// First failure after expiry: the stale entry is served, flagged degraded.
	entry, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, upstreamDown))
	require.NoError(t, err)
	assert.True(t, entry.Degraded)
	assert.Len(t, entry.Articles, 1)

	// Second failure: the stale generation is spent, the error propagates.
	_, err = c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, upstreamDown))
	assert.Equal(t, stderrors.ErrCodeAggregateUnavailable, stderrors.CodeOf(err))
}

func TestGetOrFetch_SuccessfulRefreshClearsStaleMarker(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)

	now = now.Add(90 * time.Second)
	upstreamDown := stderrors.NewAggregateUnavailableError(3)

	_, err = c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, upstreamDown))
	require.NoError(t, err)

	// Upstream recovers; the refreshed entry re-arms stale serving.
	_, err = c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)

	now = now.Add(90 * time.Second)
	entry, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, upstreamDown))
	require.NoError(t, err)
	assert.True(t, entry.Degraded)
}

func TestGetOrFetch_NoEntryAndFailurePropagates(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	upstreamDown := stderrors.NewAggregateUnavailableError(3)
	_, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, nil, upstreamDown))

	assert.Equal(t, stderrors.ErrCodeAggregateUnavailable, stderrors.CodeOf(err))
}

func TestGetOrFetch_DegradedResultIsCached(t *testing.T) {
	c, _ := newTestCache(t)

	degradedFetch := func(ctx context.Context) ([]models.Article, bool, error) {
		return testArticles(), true, nil
	}

	entry, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, degradedFetch)
	require.NoError(t, err)
	assert.True(t, entry.Degraded)
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32

	_, err := c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)

	c.Invalidate(context.Background(), testQuery())

	_, err = c.GetOrFetch(context.Background(), testQuery(), time.Minute, fetchCounting(&calls, testArticles(), nil))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
