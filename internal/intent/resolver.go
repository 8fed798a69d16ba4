// internal/intent/resolver.go
package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"news-agent/internal/models"
)

// Matcher classifies text into an Intent, or declines. Matchers run in a
// fixed priority order; the first match wins regardless of where the match
// occurs in the string.
type Matcher interface {
	Match(text string, prefs models.Preferences) (models.Intent, bool)
}

// Resolver turns free-form text into a structured Intent. It is a pure
// function of the input text and the user's preferences: no I/O, fully
// deterministic.
type Resolver struct {
	matchers []Matcher
}

// NewResolver builds the resolver with the standard matcher chain:
// publication > category > topic > generic headlines.
func NewResolver() *Resolver {
	return &Resolver{
		matchers: []Matcher{
			publicationMatcher{},
			categoryMatcher{},
			topicMatcher{},
			genericMatcher{},
		},
	}
}

// Resolve classifies text. When no matcher claims the text the result is the
// Unknown intent, which callers treat as default headlines without an
// authoritative match.
func (r *Resolver) Resolve(text string, prefs models.Preferences) models.Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, m := range r.matchers {
		if intent, ok := m.Match(normalized, prefs); ok {
			return intent
		}
	}

	return models.Intent{Kind: models.IntentUnknown, Region: regionOf(prefs)}
}

// regionOf maps the preference region to a provider country code. A "global"
// region has no provider equivalent and falls back to "us".
func regionOf(prefs models.Preferences) string {
	region := strings.ToLower(strings.TrimSpace(prefs.Region))
	if region == "" || region == "global" {
		return "us"
	}
	return region
}

// containsPhrase reports whether phrase occurs in text bounded by
// non-letter runes, so "ap" does not match inside "apple". Boundary runes
// are decoded as UTF-8, not single bytes, so a multibyte letter next to the
// match still counts as part of a word.
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start

		prev, _ := utf8.DecodeLastRuneInString(text[:idx])
		next, _ := utf8.DecodeRuneInString(text[idx+len(phrase):])
		if !isWordRune(prev) && !isWordRune(next) {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

type publicationMatcher struct{}

func (publicationMatcher) Match(text string, _ models.Preferences) (models.Intent, bool) {
	for _, pub := range knownPublications {
		if containsPhrase(text, pub) {
			return models.Intent{Kind: models.IntentPublication, Publication: pub}, true
		}
	}
	return models.Intent{}, false
}

type categoryMatcher struct{}

func (categoryMatcher) Match(text string, prefs models.Preferences) (models.Intent, bool) {
	for _, cat := range knownCategories {
		if containsPhrase(text, cat) {
			return models.Intent{
				Kind:     models.IntentHeadlines,
				Region:   regionOf(prefs),
				Category: cat,
			}, true
		}
	}
	return models.Intent{}, false
}

type topicMatcher struct{}

func (topicMatcher) Match(text string, prefs models.Preferences) (models.Intent, bool) {
	// Favorite topics first: an explicit preference beats the keyword table.
	for _, topic := range prefs.FavoriteTopics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic != "" && containsPhrase(text, topic) {
			return models.Intent{Kind: models.IntentTopic, Term: topic, Language: "en"}, true
		}
	}

	for _, keyword := range topicKeywords {
		if containsPhrase(text, keyword) {
			return models.Intent{Kind: models.IntentTopic, Term: keyword, Language: "en"}, true
		}
	}

	if term, ok := extractTopicAfterPreposition(text); ok {
		return models.Intent{Kind: models.IntentTopic, Term: term, Language: "en"}, true
	}

	return models.Intent{}, false
}

// extractTopicAfterPreposition pulls the token following "about",
// "regarding" or "on" as the topic term.
func extractTopicAfterPreposition(text string) (string, bool) {
	words := strings.Fields(text)
	for i, word := range words {
		for _, prep := range topicPrepositions {
			if word == prep && i+1 < len(words) {
				term := strings.TrimFunc(words[i+1], func(r rune) bool { return !isWordRune(r) })
				if term != "" {
					return term, true
				}
			}
		}
	}
	return "", false
}

type genericMatcher struct{}

func (genericMatcher) Match(text string, prefs models.Preferences) (models.Intent, bool) {
	if text == "" {
		return models.Intent{Kind: models.IntentHeadlines, Region: regionOf(prefs)}, true
	}
	for _, phrase := range genericPhrases {
		if containsPhrase(text, phrase) {
			return models.Intent{Kind: models.IntentHeadlines, Region: regionOf(prefs)}, true
		}
	}
	return models.Intent{}, false
}
