// internal/providers/guardian.go
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

const guardianName = "guardian"

// guardianSections maps headline categories onto Guardian section ids, which
// differ from ours for sport and culture.
var guardianSections = map[string]string{
	"world":         "world",
	"politics":      "politics",
	"business":      "business",
	"technology":    "technology",
	"science":       "science",
	"health":        "society",
	"sports":        "sport",
	"entertainment": "culture",
	"arts":          "culture",
}

var guardianAliases = map[string]bool{
	"the guardian": true,
	"guardian":     true,
}

// Guardian serves the content search API. Headlines map to section feeds,
// topics to full-text search. It carries no region dimension.
type Guardian struct {
	config      config.ProviderConfig
	client      *http.Client
	logger      logger.Logger
	maxArticles int
}

func NewGuardian(cfg config.ProviderConfig, maxArticles int, log logger.Logger) *Guardian {
	return &Guardian{
		config:      cfg,
		client:      &http.Client{Timeout: cfg.GetTimeout()},
		logger:      log.With(map[string]interface{}{"provider": guardianName}),
		maxArticles: maxArticles,
	}
}

func (p *Guardian) Name() string { return guardianName }

func (p *Guardian) Fetch(ctx context.Context, query models.NormalizedQuery) ([]models.Article, error) {
	params := url.Values{}
	params.Set("api-key", p.config.APIKey)
	params.Set("show-fields", "trailText,thumbnail")
	params.Set("order-by", "newest")

	switch query.Kind {
	case models.IntentHeadlines:
		if query.Term != "" {
			section, ok := guardianSections[query.Term]
			if !ok {
				return nil, ErrUnsupportedQuery
			}
			params.Set("section", section)
		}

	case models.IntentPublication:
		if !guardianAliases[query.Term] {
			return nil, ErrUnsupportedQuery
		}

	case models.IntentTopic:
		params.Set("q", query.Term)

	default:
		return nil, ErrUnsupportedQuery
	}

	if !p.config.Enabled() {
		return nil, stderrors.NewUpstreamProviderError(guardianName, errNoAPIKey)
	}

	endpoint := fmt.Sprintf("%s/search?%s", p.config.BaseURL, params.Encode())

	body, err := doGet(ctx, p.client, guardianName, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response struct {
			Status  string `json:"status"`
			Results []struct {
				WebTitle           string `json:"webTitle"`
				WebURL             string `json:"webUrl"`
				WebPublicationDate string `json:"webPublicationDate"`
				SectionName        string `json:"sectionName"`
				Fields             struct {
					TrailText string `json:"trailText"`
					Thumbnail string `json:"thumbnail"`
				} `json:"fields"`
			} `json:"results"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, stderrors.NewMalformedResponseError(guardianName, err)
	}
	if payload.Response.Status != "ok" {
		return nil, stderrors.NewUpstreamProviderError(guardianName, fmt.Errorf("api status %q", payload.Response.Status))
	}

	articles := make([]models.Article, 0, len(payload.Response.Results))
	for _, r := range payload.Response.Results {
		if r.WebTitle == "" || r.WebURL == "" {
			continue
		}
		articles = append(articles, models.Article{
			Title:       r.WebTitle,
			Description: r.Fields.TrailText,
			URL:         r.WebURL,
			ImageURL:    r.Fields.Thumbnail,
			Source:      "The Guardian",
			PublishedAt: parseTime(r.WebPublicationDate),
			Section:     r.SectionName,
		})
	}
	return capArticles(articles, p.maxArticles), nil
}
