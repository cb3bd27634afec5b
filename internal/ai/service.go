package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"text/template"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	maxAdvices     = 5
	maxTitleLength = 200
)

var (
	ErrNoJSON   = errors.New("ai response does not contain a json object")
	ErrNoAdvice = errors.New("ai response has no advices")
)

const systemPrompt = "You are a personal finance assistant for a daily budget app. Respond with JSON only, without extra text."

var analyzePrompt = template.Must(template.New("analyze").Parse(`Analyze this month of a daily budget and return advice as JSON.

How the budget works:
- daily_budget is total_budget divided by days_in_month.
- Unspent money of a day carries over to the next day, overspending carries over as a deficit.
- remaining_balance = total_budget + income - spent.

Requirements:
- Output JSON only, no code fences.
- Write in Brazilian Portuguese.
- Schema: {"summary": string, "advices": [{"title": string, "content": string, "priority": "high" | "medium" | "low"}]}
- Provide 3-{{.MaxAdvices}} actionable advices, the most important first.
- Keep titles short (<= 60 chars).

Input:
{{.Snapshot}}`))

// Analysis это результат запроса вместе с данными для журнала. Prompt и Raw
// заполняются и при ошибке, если до провайдера дошло дело.
type Analysis struct {
	Advice AdviceResponse
	Prompt string
	Raw    []byte
}

// Service просит у модели советы по месяцу клиента.
type Service struct {
	client Client
}

func NewService(client Client) *Service {
	return &Service{client: client}
}

func (s *Service) Provider() string { return s.client.Provider() }

func (s *Service) Model() string { return s.client.Model() }

func (s *Service) AnalyzeSpending(ctx context.Context, snapshot SpendingSnapshot) (Analysis, error) {
	var result Analysis

	prompt, err := renderPrompt(snapshot)
	if err != nil {
		return result, err
	}
	result.Prompt = prompt

	content, raw, err := s.client.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	result.Raw = raw
	if err != nil {
		return result, err
	}

	var advice AdviceResponse
	if err := decodeObject(content, &advice); err != nil {
		return result, err
	}
	if err := advice.normalize(); err != nil {
		return result, err
	}

	result.Advice = advice
	return result, nil
}

func renderPrompt(snapshot SpendingSnapshot) (string, error) {
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = analyzePrompt.Execute(&buf, struct {
		MaxAdvices int
		Snapshot   string
	}{maxAdvices, string(payload)})
	return buf.String(), err
}

// decodeObject декодирует первый JSON-объект в тексте модели. Текст до
// объекта, ограда ```json и все после объекта игнорируются.
func decodeObject(content string, target interface{}) error {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ErrNoJSON
	}
	if err := json.NewDecoder(strings.NewReader(content[start:])).Decode(target); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}

// normalize чистит пробелы, отбрасывает пустые советы, приводит неизвестный
// приоритет к medium и оставляет не больше maxAdvices.
func (r *AdviceResponse) normalize() error {
	r.Summary = strings.TrimSpace(r.Summary)

	kept := r.Advices[:0]
	for _, advice := range r.Advices {
		advice.Content = strings.TrimSpace(advice.Content)
		if advice.Content == "" {
			continue
		}
		advice.Title = strings.TrimSpace(advice.Title)
		if len(advice.Title) > maxTitleLength {
			return errors.New("advice title is too long")
		}

		switch p := strings.ToLower(strings.TrimSpace(advice.Priority)); p {
		case PriorityHigh, PriorityMedium, PriorityLow:
			advice.Priority = p
		default:
			advice.Priority = PriorityMedium
		}

		kept = append(kept, advice)
		if len(kept) == maxAdvices {
			break
		}
	}

	if len(kept) == 0 {
		return ErrNoAdvice
	}
	r.Advices = kept
	return nil
}
