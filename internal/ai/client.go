// Package ai получает советы по расходам у LLM-провайдера (Gemini или Groq).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"

	defaultMaxTokens = 4096
	temperature      = 0.2
)

var (
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrMissingAPIKey   = errors.New("ai api key is missing")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client отправляет диалог провайдеру и возвращает текст ответа и сырое тело.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, []byte, error)
	Provider() string
	Model() string
}

// Options общие для всех провайдеров.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxTokens  int
	MaxRetries int
}

// APIError описывает ответ провайдера с кодом не 2xx.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// NewClient создает клиента выбранного провайдера.
func NewClient(provider string, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGemini:
		return NewGeminiClient(opts), nil
	case ProviderGroq:
		return NewGroqClient(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}

// newHTTPClient повторяет запросы при сетевых ошибках, 429 и 5xx.
// Последний ответ отдается вызывающему как есть, чтобы разобрать ошибку API.
func newHTTPClient(timeout time.Duration, retries int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// postJSON отправляет JSON и возвращает тело ответа. Для кода не 2xx
// возвращает тело и *APIError с сообщением, извлеченным extractMessage.
func postJSON(ctx context.Context, client *retryablehttp.Client, provider, endpoint string, headers map[string]string, payload interface{}, extractMessage func([]byte) string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := extractMessage(raw)
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		return raw, &APIError{Provider: provider, StatusCode: response.StatusCode, Message: message}
	}

	return raw, nil
}
