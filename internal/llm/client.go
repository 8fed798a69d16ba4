// internal/llm/client.go
package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"news-agent/internal/common/config"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/metrics"
	"news-agent/internal/models"
)

// Message is one conversation turn passed to the language model.
type Message struct {
	Role    models.Role
	Content string
}

// Client phrases responses through a language model. Implementations must be
// safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	Enabled() bool
}

// OpenAIClient calls the chat completions API. Content generated here is
// opaque to the rest of the pipeline: callers treat the string as-is and
// fall back to templated text when the call fails.
type OpenAIClient struct {
	client openai.Client
	config config.LanguageModelConfig
	logger logger.Logger
}

func NewClient(cfg config.LanguageModelConfig, log logger.Logger) *OpenAIClient {
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(options...),
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "languageModel"}),
	}
}

func (c *OpenAIClient) Enabled() bool {
	return c.config.Enabled()
}

func (c *OpenAIClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.GetTimeout())
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.config.Model),
		MaxTokens:   openai.Int(int64(c.config.MaxTokens)),
		Temperature: openai.Float(c.config.Temperature),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1),
	}
	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.LanguageModelCalls.WithLabelValues("timeout").Inc()
			return "", stderrors.NewLanguageModelTimeoutError()
		}
		metrics.LanguageModelCalls.WithLabelValues("error").Inc()
		return "", stderrors.NewLanguageModelFailedError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LanguageModelCalls.WithLabelValues("error").Inc()
		return "", stderrors.NewLanguageModelFailedError(errEmptyCompletion)
	}

	metrics.LanguageModelCalls.WithLabelValues("success").Inc()
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var errEmptyCompletion = errors.New("empty completion")
