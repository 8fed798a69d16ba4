// internal/models/intent.go
package models

import (
	"fmt"
	"strings"
)

// IntentKind tags the variant of a resolved Intent.
type IntentKind string

const (
	IntentHeadlines   IntentKind = "headlines"
	IntentPublication IntentKind = "publication"
	IntentTopic       IntentKind = "topic"
	IntentAnalysis    IntentKind = "analysis"
	IntentUnknown     IntentKind = "unknown"
)

// Intent is the structured form of a user request. Only the fields relevant
// to the tagged kind are populated:
//
//	Headlines:   Region, optionally Category
//	Publication: Publication
//	Topic:       Term, optionally Language
//	Analysis:    Articles, Prompt
//	Unknown:     nothing (composer falls back to default headlines)
type Intent struct {
	Kind        IntentKind `json:"kind"`
	Region      string     `json:"region,omitempty"`
	Category    string     `json:"category,omitempty"`
	Publication string     `json:"publication,omitempty"`
	Term        string     `json:"term,omitempty"`
	Language    string     `json:"language,omitempty"`
	Articles    []Article  `json:"articles,omitempty"`
	Prompt      string     `json:"prompt,omitempty"`
}

// NormalizedQuery is the canonical cache key material for an intent: all
// string fields lower-cased and trimmed so that equal intents under
// different casing or spacing hash identically.
type NormalizedQuery struct {
	Kind   IntentKind `json:"kind"`
	Region string     `json:"region,omitempty"`
	Term   string     `json:"term,omitempty"`
}

// Normalize reduces the intent to its canonical query form. Unknown intents
// normalize to the default headlines query for the given region.
func (i Intent) Normalize() NormalizedQuery {
	switch i.Kind {
	case IntentPublication:
		return NormalizedQuery{Kind: IntentPublication, Term: canon(i.Publication)}
	case IntentTopic:
		return NormalizedQuery{Kind: IntentTopic, Region: canon(i.Language), Term: canon(i.Term)}
	case IntentHeadlines:
		return NormalizedQuery{Kind: IntentHeadlines, Region: canon(i.Region), Term: canon(i.Category)}
	default:
		return NormalizedQuery{Kind: IntentHeadlines, Region: canon(i.Region)}
	}
}

// Key renders the query as a stable cache key.
func (q NormalizedQuery) Key() string {
	return fmt.Sprintf("query:%s:%s:%s", q.Kind, q.Region, q.Term)
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
