// internal/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-agent/internal/common/config"
	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/models"
)

func testLLMConfig(baseURL string) config.LanguageModelConfig {
	return config.LanguageModelConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     2000,
	}
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		messages := body["messages"].([]interface{})
		require.Len(t, messages, 3)
		first := messages[0].(map[string]interface{})
		assert.Equal(t, "system", first["role"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "  Here are your headlines.  "}, "finish_reason": "stop"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testLLMConfig(server.URL), logger.NewNoOpLogger())

	out, err := client.Complete(context.Background(), "You are a news assistant.", []Message{
		{Role: models.RoleUser, Content: "latest headlines"},
		{Role: models.RoleAssistant, Content: "Sure, one moment."},
	})

	require.NoError(t, err)
	assert.Equal(t, "Here are your headlines.", out)
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "boom"}}`))
	}))
	defer server.Close()

	client := NewClient(testLLMConfig(server.URL), logger.NewNoOpLogger())

	_, err := client.Complete(context.Background(), "", []Message{
		{Role: models.RoleUser, Content: "hello"},
	})

	assert.Equal(t, stderrors.ErrCodeLanguageModelFailed, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err))
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	client := NewClient(testLLMConfig(server.URL), logger.NewNoOpLogger())

	_, err := client.Complete(context.Background(), "", []Message{
		{Role: models.RoleUser, Content: "hello"},
	})

	assert.Equal(t, stderrors.ErrCodeLanguageModelFailed, stderrors.CodeOf(err))
}

func TestEnabled(t *testing.T) {
	client := NewClient(config.LanguageModelConfig{APIKey: ""}, logger.NewNoOpLogger())
	assert.False(t, client.Enabled())

	client = NewClient(testLLMConfig("http://unused"), logger.NewNoOpLogger())
	assert.True(t, client.Enabled())
}
