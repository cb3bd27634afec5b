package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubClient struct {
	content  string
	err      error
	messages []Message
}

func (s *stubClient) Chat(_ context.Context, messages []Message) (string, []byte, error) {
	s.messages = messages
	return s.content, []byte(s.content), s.err
}

func (s *stubClient) Provider() string { return "stub" }

func (s *stubClient) Model() string { return "stub-1" }

func snapshot() SpendingSnapshot {
	return SpendingSnapshot{
		Period:        "2025-04",
		Currency:      "BRL",
		MonthlySalary: decimal.NewFromInt(3000),
		TotalBudget:   decimal.NewFromInt(900),
		DailyBudget:   decimal.NewFromInt(30),
		DaysInMonth:   30,
		Categories:    []CategorySpend{{Name: "Mercado", Amount: decimal.NewFromInt(120), Count: 3}},
	}
}

// TestDecodeObject проверяет извлечение JSON из блока кода и текста.
func TestDecodeObject(t *testing.T) {
	cases := map[string]bool{
		"```json\n{\"a\":1}\n```":        true,
		"Resposta: {\"a\":1} fim {\"b\"": true,
		"sem json":                       false,
		"{quebrado":                      false,
		"":                               false,
	}

	for input, ok := range cases {
		var got struct {
			A int `json:"a"`
		}
		err := decodeObject(input, &got)
		if ok && (err != nil || got.A != 1) {
			t.Fatalf("decodeObject(%q) = %v, %+v", input, err, got)
		}
		if !ok && !errors.Is(err, ErrNoJSON) {
			t.Fatalf("decodeObject(%q): expected ErrNoJSON, got %v", input, err)
		}
	}
}

func TestAnalyzeSpendingNormalizesAdvices(t *testing.T) {
	client := &stubClient{content: "```json\n" + `{
		"summary": " Mês equilibrado ",
		"advices": [
			{"title": "Mercado", "content": "Reduza idas ao mercado", "priority": "HIGH"},
			{"title": "Vazio", "content": "   "},
			{"title": "Lazer", "content": "Defina um teto semanal", "priority": "urgent"},
			{"content": "3"}, {"content": "4"}, {"content": "5"}, {"content": "6"}
		]
	}` + "\n```"}

	analysis, err := NewService(client).AnalyzeSpending(context.Background(), snapshot())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	response, prompt, raw := analysis.Advice, analysis.Prompt, analysis.Raw

	if len(response.Advices) != maxAdvices {
		t.Fatalf("expected %d advices, got %d", maxAdvices, len(response.Advices))
	}
	if response.Summary != "Mês equilibrado" {
		t.Fatalf("unexpected summary %q", response.Summary)
	}
	if response.Advices[0].Priority != PriorityHigh {
		t.Fatalf("expected high priority, got %q", response.Advices[0].Priority)
	}
	if response.Advices[1].Priority != PriorityMedium {
		t.Fatalf("expected unknown priority to become medium, got %q", response.Advices[1].Priority)
	}
	if !strings.Contains(prompt, `"period": "2025-04"`) {
		t.Fatalf("prompt does not contain snapshot: %s", prompt)
	}
	if len(raw) == 0 {
		t.Fatalf("expected raw response")
	}
	if client.messages[0].Role != "system" {
		t.Fatalf("expected system message first")
	}
}

func TestAnalyzeSpendingErrors(t *testing.T) {
	_, err := NewService(&stubClient{content: `{"advices": []}`}).AnalyzeSpending(context.Background(), snapshot())
	if !errors.Is(err, ErrNoAdvice) {
		t.Fatalf("expected ErrNoAdvice, got %v", err)
	}

	_, err = NewService(&stubClient{content: "no json"}).AnalyzeSpending(context.Background(), snapshot())
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}

	providerErr := errors.New("timeout")
	analysis, err := NewService(&stubClient{err: providerErr}).AnalyzeSpending(context.Background(), snapshot())
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if analysis.Prompt == "" {
		t.Fatalf("expected prompt to be returned for logging")
	}
}

func TestNewClientProviders(t *testing.T) {
	client, err := NewClient("Gemini", Options{Model: "gemini-1.5-flash"})
	if err != nil || client.Provider() != ProviderGemini {
		t.Fatalf("expected gemini client, got %v (%v)", client, err)
	}

	if _, err := NewClient("openai", Options{}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestGroqClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"advices\":[]}"}}]}`))
	}))
	defer server.Close()

	client := NewGroqClient(Options{APIKey: "key", BaseURL: server.URL + "/", Model: "llama", Timeout: time.Second})
	content, _, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if content != `{"advices":[]}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestGeminiClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient(Options{APIKey: "key", BaseURL: server.URL, Model: "x", Timeout: time.Second})
	_, body, err := client.Chat(context.Background(), []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "bad model" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if len(body) == 0 {
		t.Fatalf("expected raw body")
	}
}

func TestMissingAPIKey(t *testing.T) {
	_, _, err := NewGroqClient(Options{}).Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestBuildGeminiRequestRoles(t *testing.T) {
	request := buildGeminiRequest([]Message{
		{Role: "system", Content: "sys"},
		{Role: "assistant", Content: "prev"},
		{Role: "user", Content: "ask"},
		{Role: "user", Content: "  "},
	}, 100)

	if request.SystemInstruction == nil || request.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("expected system instruction")
	}
	if len(request.Contents) != 2 || request.Contents[0].Role != "model" || request.Contents[1].Role != "user" {
		t.Fatalf("unexpected contents %+v", request.Contents)
	}
	if request.GenerationConfig.MaxOutputTokens != 100 {
		t.Fatalf("unexpected max tokens %d", request.GenerationConfig.MaxOutputTokens)
	}
}
