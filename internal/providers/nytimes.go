// internal/providers/nytimes.go
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

const nyTimesName = "nytimes"

// nytSections maps headline categories to NYT Top Stories sections. The
// empty category maps to the "home" front page.
var nytSections = map[string]string{
	"":              "home",
	"world":         "world",
	"politics":      "politics",
	"business":      "business",
	"technology":    "technology",
	"science":       "science",
	"health":        "health",
	"sports":        "sports",
	"entertainment": "movies",
	"arts":          "arts",
}

// nytAliases are the publication names the NYT client answers for. Any other
// publication query is unsupported here.
var nytAliases = map[string]bool{
	"new york times": true,
	"ny times":       true,
	"nyt":            true,
}

// NYTimes serves top stories per section and article search by topic. It is
// US-only: headlines queries for other regions are unsupported.
type NYTimes struct {
	config      config.ProviderConfig
	client      *http.Client
	logger      logger.Logger
	maxArticles int
}

func NewNYTimes(cfg config.ProviderConfig, maxArticles int, log logger.Logger) *NYTimes {
	return &NYTimes{
		config:      cfg,
		client:      &http.Client{Timeout: cfg.GetTimeout()},
		logger:      log.With(map[string]interface{}{"provider": nyTimesName}),
		maxArticles: maxArticles,
	}
}

func (p *NYTimes) Name() string { return nyTimesName }

func (p *NYTimes) Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, error) {
	switch query.Kind {
	case models.IntentHeadlines:
		if query.Region != "" && query.Region != "us" {
			return nil, ErrUnsupportedQuery
		}
		section, ok := nytSections[query.Term]
		if !ok {
			return nil, ErrUnsupportedQuery
		}
		return p.fetchTopStories(ctx, section)

	case models.IntentPublication:
		if !nytAliases[query.Term] {
			return nil, ErrUnsupportedQuery
		}
		return p.fetchTopStories(ctx, "home")

	case models.IntentTopic:
		return p.search(ctx, query.Term)

	default:
		return nil, ErrUnsupportedQuery
	}
}

func (p *NYTimes) fetchTopStories(ctx context.Context, section string) ([]models.Article, error) {
	if !p.config.Enabled() {
		return nil, stderrors.NewUpstreamProviderError(nyTimesName, errNoAPIKey)
	}

	endpoint := fmt.Sprintf("%s/topstories/v2/%s.json?api-key=%s",
		p.config.BaseURL, section, url.QueryEscape(p.config.APIKey))

	body, err := doGet(ctx, p.client, nyTimesName, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			Title         string `json:"title"`
			Abstract      string `json:"abstract"`
			URL           string `json:"url"`
			Section       string `json:"section"`
			PublishedDate string `json:"published_date"`
			Multimedia    []struct {
				URL    string `json:"url"`
				Format string `json:"format"`
			} `json:"multimedia"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, stderrors.NewMalformedResponseError(nyTimesName, err)
	}

	articles := make([]models.Article, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		imageURL := ""
		for _, m := range r.Multimedia {
			if m.URL != "" {
				imageURL = m.URL
				break
			}
		}
		articles = append(articles, models.Article{
			Title:       r.Title,
			Description: r.Abstract,
			URL:         r.URL,
			ImageURL:    imageURL,
			Source:      "The New York Times",
			PublishedAt: parseTime(r.PublishedDate),
			Section:     r.Section,
		})
	}
	return capArticles(articles, p.maxArticles), nil
}

func (p *NYTimes) search(ctx context.Context, term string) ([]models.Article, error) {
	if !p.config.Enabled() {
		return nil, stderrors.NewUpstreamProviderError(nyTimesName, errNoAPIKey)
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("sort", "newest")
	params.Set("api-key", p.config.APIKey)
	endpoint := fmt.Sprintf("%s/search/v2/articlesearch.json?%s", p.config.BaseURL, params.Encode())

	body, err := doGet(ctx, p.client, nyTimesName, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response struct {
			Docs []struct {
				Headline struct {
					Main string `json:"main"`
				} `json:"headline"`
				Abstract    string `json:"abstract"`
				WebURL      string `json:"web_url"`
				PubDate     string `json:"pub_date"`
				SectionName string `json:"section_name"`
			} `json:"docs"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, stderrors.NewMalformedResponseError(nyTimesName, err)
	}

	articles := make([]models.Article, 0, len(payload.Response.Docs))
	for _, d := range payload.Response.Docs {
		if d.Headline.Main == "" || d.WebURL == "" {
			continue
		}
		articles = append(articles, models.Article{
			Title:       d.Headline.Main,
			Description: d.Abstract,
			URL:         d.WebURL,
			Source:      "The New York Times",
			PublishedAt: parseTime(d.PubDate),
			Section:     d.SectionName,
		})
	}
	return capArticles(articles, p.maxArticles), nil
}
