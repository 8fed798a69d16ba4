// internal/server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-agent/internal/cache"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/observability"
	"news-agent/internal/composer"
	"news-agent/internal/intent"
	"news-agent/internal/llm"
	"news-agent/internal/models"
)

type stubAggregator struct {
	articles []models.Article
	degraded bool
	err      error
}

func (s *stubAggregator) Fetch(ctx context.Context, _ models.NormalizedQuery) ([]models.Article, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.articles, s.degraded, nil
}

type passthroughCache struct{}

func (passthroughCache) GetOrFetch(ctx context.Context, query models.NormalizedQuery, ttl time.Duration, fetch cache.FetchFunc) (*models.CacheEntry, error) {
	articles, degraded, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &models.CacheEntry{
		Key:       query.Key(),
		Articles:  articles,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
		Degraded:  degraded,
	}, nil
}

type memorySessions struct {
	prefs   map[string]models.Preferences
	history map[string][]models.Message
}

func newMemorySessions() *memorySessions {
	return &memorySessions{
		prefs:   make(map[string]models.Preferences),
		history: make(map[string][]models.Message),
	}
}

func (m *memorySessions) LockUser(string) func() { return func() {} }

func (m *memorySessions) Get(_ context.Context, userID string) (*models.UserSession, bool, error) {
	prefs, ok := m.prefs[userID]
	if !ok {
		prefs = models.DefaultPreferences()
		m.prefs[userID] = prefs
	}
	return &models.UserSession{
		UserID:      userID,
		Preferences: prefs,
		History:     m.history[userID],
	}, ok, nil
}

func (m *memorySessions) Create(_ context.Context, userID string, prefs models.Preferences) (*models.UserSession, error) {
	m.prefs[userID] = prefs.Normalize()
	return &models.UserSession{UserID: userID, Preferences: m.prefs[userID]}, nil
}

func (m *memorySessions) AppendMessage(_ context.Context, userID string, role models.Role, content string) (*models.Message, error) {
	msg := models.Message{ID: "id", Role: role, Content: content, Timestamp: time.Now()}
	m.history[userID] = append(m.history[userID], msg)
	return &msg, nil
}

func (m *memorySessions) AppendExchange(ctx context.Context, userID, userText, assistantText string) error {
	m.AppendMessage(ctx, userID, models.RoleUser, userText)
	m.AppendMessage(ctx, userID, models.RoleAssistant, assistantText)
	return nil
}

func (m *memorySessions) History(_ context.Context, userID string) ([]models.Message, error) {
	return m.history[userID], nil
}

func (m *memorySessions) ClearHistory(_ context.Context, userID string) error {
	m.history[userID] = nil
	return nil
}

func (m *memorySessions) ReplacePreferences(_ context.Context, userID string, prefs models.Preferences) error {
	m.prefs[userID] = prefs.Normalize()
	return nil
}

type stubLLM struct {
	enabled bool
	reply   string
	err     error
}

func (s *stubLLM) Enabled() bool { return s.enabled }

func (s *stubLLM) Complete(_ context.Context, _ string, _ []llm.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testArticles() []models.Article {
	return []models.Article{
		{Title: "Markets rally", Source: "Reuters", URL: "https://e.com/1", PublishedAt: time.Now()},
	}
}

func newTestServer(t *testing.T, agg *stubAggregator, model llm.Client) (*Server, *memorySessions) {
	t.Helper()
	sessions := newMemorySessions()
	comp := composer.New(intent.NewResolver(), agg, passthroughCache{}, sessions, model, logger.NewNoOpLogger())
	srv := New(comp, sessions, observability.New("news-agent-test"), logger.NewNoOpLogger())
	return srv, sessions
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

// Each server carries its own exporter registry, so building several in one
// process must not poison /metrics with duplicate series.
func TestMetricsEndpoint_MultipleServers(t *testing.T) {
	first, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})
	second, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	for _, srv := range []*Server{first, second} {
		doRequest(srv, http.MethodGet, "/health", "")

		w := doRequest(srv, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "was collected before")
	}
}

func TestInitialize(t *testing.T) {
	srv, sessions := newTestServer(t, &stubAggregator{articles: testArticles()}, &stubLLM{})

	w := doRequest(srv, http.MethodPost, "/api/initialize",
		`{"userId": "user-1", "preferences": {"region": "gb", "updateFrequency": "hourly"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "Markets rally")
	assert.Equal(t, "gb", sessions.prefs["user-1"].Region)
}

func TestInitialize_MissingUserID(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodPost, "/api/initialize", `{"preferences": {}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
}

func TestInitialize_RejectsUnknownPreferenceField(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodPost, "/api/initialize",
		`{"userId": "user-1", "preferences": {"notAField": true}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryRoundTrip(t *testing.T) {
	srv, sessions := newTestServer(t, &stubAggregator{articles: testArticles()}, &stubLLM{})
	sessions.history["user-1"] = []models.Message{
		{ID: "1", Role: models.RoleUser, Content: "hello", Timestamp: time.Now()},
	}

	w := doRequest(srv, http.MethodGet, "/api/history/user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["history"], 1)

	w = doRequest(srv, http.MethodDelete, "/api/history/user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(srv, http.MethodGet, "/api/history/user-1", "")
	body = decode(t, w)
	assert.Empty(t, body["history"])
}

func TestHeadlines(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{articles: testArticles()}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/api/headlines?country=us&category=business", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["headlines"], 1)
	assert.Equal(t, false, body["degraded"])
}

func TestHeadlines_AllProvidersDown(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{err: stderrors.NewAggregateUnavailableError(3)}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/api/headlines", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "AGGREGATE_UNAVAILABLE", errObj["code"])
	assert.Equal(t, true, errObj["retryable"])
}

func TestHeadlines_DegradedFlagPassesThrough(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{articles: testArticles(), degraded: true}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/api/headlines", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["degraded"])
}

func TestPublication(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{articles: testArticles()}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/api/publication/bbc", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["articles"], 1)
}

func TestTopic(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{articles: testArticles()}, &stubLLM{})

	w := doRequest(srv, http.MethodGet, "/api/topic/climate?language=en", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["articles"], 1)
}

func TestRequest_ChatFlow(t *testing.T) {
	srv, sessions := newTestServer(t, &stubAggregator{articles: testArticles()},
		&stubLLM{enabled: true, reply: "Markets are up."})

	w := doRequest(srv, http.MethodPost, "/api/request",
		`{"userId": "user-1", "userInput": "latest headlines"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	resp := body["response"].(map[string]interface{})
	assert.Equal(t, "Markets are up.", resp["message"])
	assert.Len(t, resp["articles"], 1)

	// Both turns recorded.
	assert.Len(t, sessions.history["user-1"], 2)
}

func TestRequest_MissingBodyFields(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodPost, "/api/request", `{"userId": "user-1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{enabled: true, reply: "Coverage is aligned."})

	w := doRequest(srv, http.MethodPost, "/api/analyze",
		`{"articles": [{"title": "A", "url": "https://e.com/1", "source": "X", "publishedAt": "2025-06-01T12:00:00Z"}], "prompt": "compare"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Coverage is aligned.", body["analysis"])
}

func TestAnalyze_ModelUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{enabled: false})

	w := doRequest(srv, http.MethodPost, "/api/analyze",
		`{"articles": [], "prompt": "compare"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPreferences_Replace(t *testing.T) {
	srv, sessions := newTestServer(t, &stubAggregator{}, &stubLLM{})
	sessions.prefs["user-1"] = models.Preferences{
		FavoriteTopics:  []string{"old"},
		UpdateFrequency: models.FrequencyDaily,
		Region:          "us",
	}

	w := doRequest(srv, http.MethodPost, "/api/preferences/user-1",
		`{"preferences": {"favoriteTopics": ["climate"], "updateFrequency": "realtime"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	// Whole-value replacement, not a merge.
	assert.Equal(t, []string{"climate"}, sessions.prefs["user-1"].FavoriteTopics)
	assert.Equal(t, models.FrequencyRealtime, sessions.prefs["user-1"].UpdateFrequency)
}

func TestPreferences_InvalidFrequency(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodPost, "/api/preferences/user-1",
		`{"preferences": {"updateFrequency": "sometimes"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &stubAggregator{}, &stubLLM{})

	w := doRequest(srv, http.MethodOptions, "/api/headlines", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
