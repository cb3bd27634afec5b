package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// GroqClient работает с OpenAI-совместимым API chat completions.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *retryablehttp.Client
}

type groqChatRequest struct {
	Model          string              `json:"model"`
	Messages       []Message           `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *groqResponseFormat `json:"response_format,omitempty"`
}

type groqResponseFormat struct {
	Type string `json:"type"`
}

type groqChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGroqClient(opts Options) *GroqClient {
	return &GroqClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		maxTokens:  resolveMaxTokens(opts.MaxTokens),
		httpClient: newHTTPClient(opts.Timeout, opts.MaxRetries),
	}
}

func (c *GroqClient) Provider() string { return ProviderGroq }

func (c *GroqClient) Model() string { return c.model }

// Chat отправляет диалог и просит ответ в виде JSON-объекта.
func (c *GroqClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, ErrMissingAPIKey
	}

	request := groqChatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &groqResponseFormat{Type: "json_object"},
	}

	body, err := postJSON(ctx, c.httpClient, ProviderGroq, c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, request, groqErrorMessage)
	if err != nil {
		return "", body, err
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, err
	}
	if len(parsed.Choices) == 0 {
		return "", body, errors.New("groq response missing choices")
	}

	return parsed.Choices[0].Message.Content, body, nil
}

func groqErrorMessage(body []byte) string {
	var parsed groqChatResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return parsed.Error.Message
	}
	return ""
}
