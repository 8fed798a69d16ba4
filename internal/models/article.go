// internal/models/article.go
package models

import "time"

// Article is the common shape every provider response is normalized into.
// URL is the dedup key: within any merged payload each URL appears once.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	Section     string    `json:"section,omitempty"`
}

// CacheEntry is one cached aggregation result. Degraded is true when fewer
// than all configured providers contributed, or when the entry was served
// stale after an upstream failure.
type CacheEntry struct {
	Key       string    `json:"key"`
	Articles  []Article `json:"articles"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Degraded  bool      `json:"degraded"`
}

// Fresh reports whether the entry may still be served without refetching.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
