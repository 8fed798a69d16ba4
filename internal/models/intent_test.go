// internal/models/intent_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := Intent{Kind: IntentTopic, Term: "  Climate ", Language: "EN"}.Normalize()
	b := Intent{Kind: IntentTopic, Term: "climate", Language: "en"}.Normalize()

	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
}

func TestNormalize_PublicationDropsRegion(t *testing.T) {
	q := Intent{Kind: IntentPublication, Publication: "BBC", Region: "us"}.Normalize()

	assert.Equal(t, IntentPublication, q.Kind)
	assert.Equal(t, "bbc", q.Term)
	assert.Empty(t, q.Region)
}

func TestNormalize_UnknownFallsBackToHeadlines(t *testing.T) {
	q := Intent{Kind: IntentUnknown, Region: "US"}.Normalize()

	assert.Equal(t, IntentHeadlines, q.Kind)
	assert.Equal(t, "us", q.Region)
}

func TestKey_Distinct(t *testing.T) {
	headlines := Intent{Kind: IntentHeadlines, Region: "us"}.Normalize().Key()
	business := Intent{Kind: IntentHeadlines, Region: "us", Category: "business"}.Normalize().Key()
	topic := Intent{Kind: IntentTopic, Term: "business", Language: "en"}.Normalize().Key()

	assert.NotEqual(t, headlines, business)
	assert.NotEqual(t, business, topic)
}
