// internal/providers/newsapi.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"news-agent/internal/common/config"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/models"
)

const newsAPIName = "newsapi"

// newsAPISources maps recognized publication names and aliases to NewsAPI
// source identifiers. Publications outside this map are unsupported.
var newsAPISources = map[string]string{
	"bbc":                 "bbc-news",
	"bbc news":            "bbc-news",
	"cnn":                 "cnn",
	"fox news":            "fox-news",
	"nbc news":            "nbc-news",
	"abc news":            "abc-news",
	"reuters":             "reuters",
	"associated press":    "associated-press",
	"wall street journal": "the-wall-street-journal",
	"wsj":                 "the-wall-street-journal",
	"washington post":     "the-washington-post",
	"new york times":      "the-new-york-times",
	"ny times":            "the-new-york-times",
	"nyt":                 "the-new-york-times",
	"the guardian":        "the-guardian-uk",
	"guardian":            "the-guardian-uk",
}

// NewsAPI serves headlines by country and category, publication feeds by
// source id, and topic search.
type NewsAPI struct {
	config      config.ProviderConfig
	client      *http.Client
	logger      logger.Logger
	maxArticles int
}

func NewNewsAPI(cfg config.ProviderConfig, maxArticles int, log logger.Logger) *NewsAPI {
	return &NewsAPI{
		config:      cfg,
		client:      &http.Client{Timeout: cfg.GetTimeout()},
		logger:      log.With(map[string]interface{}{"provider": newsAPIName}),
		maxArticles: maxArticles,
	}
}

func (p *NewsAPI) Name() string { return newsAPIName }

func (p *NewsAPI) Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, error) {
	endpoint, err := p.buildURL(query)
	if err != nil {
		return nil, err
	}
	if !p.config.Enabled() {
		return nil, stderrors.NewUpstreamProviderError(newsAPIName, errNoAPIKey)
	}

	body, err := doGet(ctx, p.client, newsAPIName, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
			PublishedAt string `json:"publishedAt"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, stderrors.NewMalformedResponseError(newsAPIName, err)
	}
	if payload.Status != "ok" {
		return nil, stderrors.NewUpstreamProviderError(newsAPIName, fmt.Errorf("api status %q: %s", payload.Status, payload.Message))
	}

	articles := make([]models.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		articles = append(articles, models.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Source:      a.Source.Name,
			PublishedAt: parseTime(a.PublishedAt),
		})
	}
	return capArticles(articles, p.maxArticles), nil
}

func (p *NewsAPI) buildURL(query models.NormalizedQuery) (string, error) {
	params := url.Values{}
	params.Set("apiKey", p.config.APIKey)

	switch query.Kind {
	case models.IntentHeadlines:
		params.Set("country", query.Region)
		if query.Term != "" {
			params.Set("category", query.Term)
		}
		return fmt.Sprintf("%s/top-headlines?%s", p.config.BaseURL, params.Encode()), nil

	case models.IntentPublication:
		sourceID, ok := newsAPISources[query.Term]
		if !ok {
			return "", ErrUnsupportedQuery
		}
		params.Set("sources", sourceID)
		return fmt.Sprintf("%s/top-headlines?%s", p.config.BaseURL, params.Encode()), nil

	case models.IntentTopic:
		params.Set("q", query.Term)
		if query.Region != "" {
			params.Set("language", query.Region)
		}
		params.Set("sortBy", "publishedAt")
		return fmt.Sprintf("%s/everything?%s", p.config.BaseURL, params.Encode()), nil

	default:
		return "", ErrUnsupportedQuery
	}
}
