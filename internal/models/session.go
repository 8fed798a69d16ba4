// internal/models/session.go
package models

import (
	"strings"
	"time"
)

// UpdateFrequency controls how often a user wants fresh results. It maps
// directly to the cache TTL applied to that user's queries.
type UpdateFrequency string

const (
	FrequencyRealtime UpdateFrequency = "realtime"
	FrequencyHourly   UpdateFrequency = "hourly"
	FrequencyDaily    UpdateFrequency = "daily"
	FrequencyWeekly   UpdateFrequency = "weekly"
)

// TTL returns the cache lifetime for the frequency. Unknown values fall
// back to the daily TTL.
func (f UpdateFrequency) TTL() time.Duration {
	switch f {
	case FrequencyRealtime:
		return 60 * time.Second
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Preferences holds a user's news preferences. Updates replace the whole
// value (last write wins); the topic and publication sets are deduplicated
// case-insensitively on normalization.
type Preferences struct {
	FavoriteTopics       []string        `json:"favoriteTopics"`
	FavoritePublications []string        `json:"favoritePublications"`
	UpdateFrequency      UpdateFrequency `json:"updateFrequency"`
	Region               string          `json:"region"`
}

// DefaultPreferences returns the preferences assigned to a session created
// on first contact.
func DefaultPreferences() Preferences {
	return Preferences{
		FavoriteTopics:       []string{},
		FavoritePublications: []string{},
		UpdateFrequency:      FrequencyDaily,
		Region:               "us",
	}
}

// Normalize lower-cases and deduplicates the topic and publication sets and
// fills empty fields with defaults.
func (p Preferences) Normalize() Preferences {
	p.FavoriteTopics = dedupeFold(p.FavoriteTopics)
	p.FavoritePublications = dedupeFold(p.FavoritePublications)
	if p.UpdateFrequency == "" {
		p.UpdateFrequency = FrequencyDaily
	}
	if p.Region == "" {
		p.Region = "us"
	}
	p.Region = strings.ToLower(strings.TrimSpace(p.Region))
	return p
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Immutable once appended.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// UserSession is the durable per-user state: preferences plus the ordered
// conversation history. History order is append order; ClearHistory
// truncates it but keeps the userId and preferences.
type UserSession struct {
	UserID      string      `json:"userId" db:"user_id"`
	Preferences Preferences `json:"preferences"`
	History     []Message   `json:"history"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}
