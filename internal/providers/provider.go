// internal/providers/provider.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/models"
)

// ErrUnsupportedQuery is returned by a provider that cannot serve the given
// query kind (e.g. asking the NYT client for BBC articles). The aggregator
// skips these without counting them as failures.
var ErrUnsupportedQuery = errors.New("UNSUPPORTED_QUERY")

// errNoAPIKey marks a provider configured without credentials. Such a
// provider counts as permanently failing, so its absence shows up in the
// degraded flag instead of silently shrinking the provider set.
var errNoAPIKey = errors.New("no api key configured")

// Provider is one upstream news source. Fetch returns articles already
// normalized into the common shape, capped at the configured article limit.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, error)
}

// doGet issues the request and classifies transport and status failures into
// the standard error taxonomy.
func doGet(ctx context.Context, client *http.Client, name, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewUpstreamProviderError(name, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, stderrors.NewProviderTimeoutError(name)
		}
		return nil, stderrors.NewUpstreamProviderError(name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, stderrors.NewProviderAuthError(name, resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, stderrors.NewRateLimitExceededError(name)
	default:
		return nil, stderrors.NewUpstreamProviderError(name, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stderrors.NewUpstreamProviderError(name, err)
	}
	return body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	return ctx.Err() == context.DeadlineExceeded ||
		strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "deadline") ||
		strings.Contains(err.Error(), "Client.Timeout")
}

// parseTime tries the timestamp layouts seen across the three provider APIs.
// A zero time is returned when none match; articles still flow through, they
// just sort last.
func parseTime(value string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// capArticles truncates to the per-provider limit. A non-positive limit means
// unlimited.
func capArticles(articles []models.Article, limit int) []models.Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
