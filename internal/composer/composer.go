// internal/composer/composer.go
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"news-agent/internal/cache"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/intent"
	"news-agent/internal/llm"
	"news-agent/internal/models"
)

const systemPrompt = "You are a concise news assistant. Answer using only the " +
	"articles provided in the context. Mention source names where relevant and " +
	"keep the response under a short paragraph."

const analysisContextLimit = 5

// Aggregator produces a merged article set for a query.
type Aggregator interface {
	Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, bool, error)
}

// ArticleCache resolves a query against the cache, fetching on miss.
type ArticleCache interface {
	GetOrFetch(ctx context.Context, query models.NormalizedQuery, ttl time.Duration, fetch cache.FetchFunc) (*models.CacheEntry, error)
}

// SessionStore is the slice of the session store the composer needs.
type SessionStore interface {
	LockUser(userID string) func()
	Get(ctx context.Context, userID string) (*models.UserSession, bool, error)
	Create(ctx context.Context, userID string, prefs models.Preferences) (*models.UserSession, error)
	AppendMessage(ctx context.Context, userID string, role models.Role, content string) (*models.Message, error)
	AppendExchange(ctx context.Context, userID, userText, assistantText string) error
}

// Response is the composed answer for one conversational request.
type Response struct {
	Message  string            `json:"message"`
	Articles []models.Article  `json:"articles"`
	Degraded bool              `json:"degraded"`
	Intent   models.IntentKind `json:"intent"`
}

// Composer orchestrates a request end to end: session, intent, cached
// aggregation, optional language-model phrasing, history append. History is
// only mutated once a response (successful or degraded) exists.
type Composer struct {
	resolver   *intent.Resolver
	aggregator Aggregator
	cache      ArticleCache
	sessions   SessionStore
	llm        llm.Client
	logger     logger.Logger
}

func New(resolver *intent.Resolver, agg Aggregator, articleCache ArticleCache, sessions SessionStore, llmClient llm.Client, log logger.Logger) *Composer {
	return &Composer{
		resolver:   resolver,
		aggregator: agg,
		cache:      articleCache,
		sessions:   sessions,
		llm:        llmClient,
		logger:     log.With(map[string]interface{}{"component": "composer"}),
	}
}

// Handle serves one conversational request. Requests for the same user are
// serialized; a failure before the response is computed leaves history
// untouched.
func (c *Composer) Handle(ctx context.Context, userID, text string) (*Response, error) {
	unlock := c.sessions.LockUser(userID)
	defer unlock()

	session, _, err := c.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := c.resolver.Resolve(text, session.Preferences)
	query := resolved.Normalize()
	ttl := session.Preferences.UpdateFrequency.TTL()

	entry, err := c.cache.GetOrFetch(ctx, query, ttl, c.fetchFunc(query))
	if err != nil {
		return nil, err
	}

	message := c.phrase(ctx, session, text, resolved, entry)

	if err := c.sessions.AppendExchange(ctx, userID, text, message); err != nil {
		return nil, err
	}

	return &Response{
		Message:  message,
		Articles: entry.Articles,
		Degraded: entry.Degraded,
		Intent:   resolved.Kind,
	}, nil
}

// Browse serves the direct article routes. No session history is involved.
func (c *Composer) Browse(ctx context.Context, browseIntent models.Intent) (*models.CacheEntry, error) {
	query := browseIntent.Normalize()
	return c.cache.GetOrFetch(ctx, query, models.FrequencyDaily.TTL(), c.fetchFunc(query))
}

// Analyze asks the language model about a caller-supplied article set. The
// context holds at most the first articles to bound prompt size.
func (c *Composer) Analyze(ctx context.Context, articles []models.Article, prompt string) (string, error) {
	if !c.llm.Enabled() {
		return "", stderrors.NewLanguageModelFailedError(errors.New("language model not configured"))
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following news articles.\n\n")
	for i, a := range articles {
		if i >= analysisContextLimit {
			break
		}
		sb.WriteString("TITLE: " + a.Title + "\n")
		sb.WriteString("SOURCE: " + a.Source + "\n")
		if a.Description != "" {
			sb.WriteString("DESCRIPTION: " + a.Description + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("TASK: " + prompt)

	return c.llm.Complete(ctx, systemPrompt, []llm.Message{
		{Role: models.RoleUser, Content: sb.String()},
	})
}

// Initialize creates (or replaces) the session and greets the user with the
// current top headlines for their region. Provider trouble degrades the
// greeting, it never fails the call.
func (c *Composer) Initialize(ctx context.Context, userID string, prefs models.Preferences) (string, error) {
	unlock := c.sessions.LockUser(userID)
	defer unlock()

	session, err := c.sessions.Create(ctx, userID, prefs)
	if err != nil {
		return "", err
	}

	message := "Welcome! Ask me for headlines, a publication, or any topic."

	headlines := models.Intent{Kind: models.IntentHeadlines, Region: session.Preferences.Region}
	query := headlines.Normalize()
	entry, err := c.cache.GetOrFetch(ctx, query, session.Preferences.UpdateFrequency.TTL(), c.fetchFunc(query))
	if err == nil && len(entry.Articles) > 0 {
		var sb strings.Builder
		sb.WriteString("Welcome! Here are today's top headlines:\n")
		for i, a := range entry.Articles {
			if i >= analysisContextLimit {
				break
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", a.Title, a.Source)
		}
		sb.WriteString("Ask me for headlines, a publication, or any topic.")
		message = sb.String()
	} else if err != nil {
		c.logger.Warn("welcome headlines unavailable", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}

	if _, err := c.sessions.AppendMessage(ctx, userID, models.RoleAssistant, message); err != nil {
		return "", err
	}
	return message, nil
}

func (c *Composer) fetchFunc(query models.NormalizedQuery) cache.FetchFunc {
	return func(ctx context.Context) ([]models.Article, bool, error) {
		return c.aggregator.Fetch(ctx, query)
	}
}

// phrase produces the conversational message, preferring the language model
// and falling back to a template on any failure.
func (c *Composer) phrase(ctx context.Context, session *models.UserSession, text string, resolved models.Intent, entry *models.CacheEntry) string {
	if !c.llm.Enabled() || len(entry.Articles) == 0 {
		return templatedMessage(resolved, entry)
	}

	messages := historyTail(session.History, 6)
	messages = append(messages, llm.Message{
		Role:    models.RoleUser,
		Content: text + "\n\nCONTEXT:\n" + articleDigest(entry.Articles),
	})

	phrased, err := c.llm.Complete(ctx, systemPrompt, messages)
	if err != nil {
		c.logger.Warn("language model unavailable, using templated message", map[string]interface{}{
			"userId": session.UserID,
			"error":  err.Error(),
		})
		return templatedMessage(resolved, entry)
	}
	return phrased
}

func articleDigest(articles []models.Article) string {
	var sb strings.Builder
	for i, a := range articles {
		if i >= analysisContextLimit {
			break
		}
		sb.WriteString("TITLE: " + a.Title + "\n")
		sb.WriteString("SOURCE: " + a.Source + "\n")
		if a.Description != "" {
			sb.WriteString("DESCRIPTION: " + a.Description + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func historyTail(history []models.Message, n int) []llm.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func templatedMessage(resolved models.Intent, entry *models.CacheEntry) string {
	var msg string
	switch resolved.Kind {
	case models.IntentPublication:
		msg = fmt.Sprintf("Here are the latest articles from %s.", resolved.Publication)
	case models.IntentTopic:
		msg = fmt.Sprintf("Here's what I found about %s.", resolved.Term)
	default:
		if resolved.Category != "" {
			msg = fmt.Sprintf("Here are the latest %s headlines.", resolved.Category)
		} else {
			msg = "Here are the latest headlines."
		}
	}

	if len(entry.Articles) == 0 {
		msg = "I couldn't find any articles for that right now."
	}
	if entry.Degraded {
		msg += " Some sources were unavailable, so results may be incomplete."
	}
	return msg
}
