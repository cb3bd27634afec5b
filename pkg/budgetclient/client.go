// Package budgetclient это Go-клиент REST API дневного бюджета.
//
// Сессия передается явно через *Session. Любой ответ 401 очищает сессию и
// возвращает ErrSessionExpired; остальные ошибки приходят как *APIError.
package budgetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout = 15 * time.Second

	headerUserID = "X-User-ID"
	contentType  = "application/json"
)

type Options struct {
	// BaseURL включает префикс /api, например http://localhost:8080/api.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
	session *Session
}

// New создает клиента. Повторы по умолчанию выключены. Переданный HTTPClient
// копируется; его Timeout заменяется только явным Options.Timeout.
func New(opts Options, session *Session) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if session == nil {
		session = &Session{}
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.RetryMax = opts.MaxRetries
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	switch {
	case opts.HTTPClient != nil:
		custom := *opts.HTTPClient
		if opts.Timeout > 0 {
			custom.Timeout = opts.Timeout
		}
		httpClient.HTTPClient = &custom
	case opts.Timeout > 0:
		httpClient.HTTPClient.Timeout = opts.Timeout
	default:
		httpClient.HTTPClient.Timeout = DefaultTimeout
	}

	return &Client{baseURL: base, http: httpClient, session: session}, nil
}

func (c *Client) Session() *Session {
	return c.session
}

// do выполняет запрос и декодирует JSON-ответ в out (может быть nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, authenticated bool) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if authenticated {
		token, userID := c.session.credentials()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(headerUserID, userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		c.session.Clear()
		return ErrSessionExpired
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Err: kindForStatus(status)}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Error
		apiErr.Fields = parsed.Fields
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
