package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/ai"
	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/notifications"
	"example.com/daily-budget/backend/internal/repository"
)

const aiRequestAnalyzeSpending = "analyze_spending"

type InsightsHandler struct {
	Service      *ai.Service
	Budget       *budget.Service
	Budgets      BudgetStore
	Transactions TransactionStore
	Settings     SettingsStore
	AILog        AIRequestStore
	Publisher    notifications.Publisher
}

func NewInsightsHandler(service *ai.Service, budgetService *budget.Service, budgets BudgetStore, transactions TransactionStore, settings SettingsStore, aiLog AIRequestStore, publisher notifications.Publisher) *InsightsHandler {
	return &InsightsHandler{
		Service:      service,
		Budget:       budgetService,
		Budgets:      budgets,
		Transactions: transactions,
		Settings:     settings,
		AILog:        aiLog,
		Publisher:    publisher,
	}
}

type AnalyzeSpendingRequest struct {
	Year  int `json:"year" validate:"omitempty,gte=2000,lte=2100"`
	Month int `json:"month" validate:"omitempty,gte=1,lte=12"`
}

type InsightsResponse struct {
	Period   string      `json:"period"`
	Summary  string      `json:"summary"`
	Advices  []ai.Advice `json:"advices"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
}

// AnalyzeSpending собирает снимок месяца клиента и запрашивает советы у LLM.
func (h *InsightsHandler) AnalyzeSpending(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || !principal.IsClient() {
		return forbidden(c)
	}

	var req AnalyzeSpendingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	today := h.Budget.Today()
	year, month := req.Year, req.Month
	if year == 0 || month == 0 {
		year, month = today.Year(), int(today.Month())
	}

	ctx := c.Request().Context()
	snapshot, err := h.buildSnapshot(ctx, principal.ID, year, month, today)
	if err != nil {
		if errors.Is(err, budget.ErrNoBudget) {
			return badRequest(c, "budget is not configured for this month")
		}
		return serverError(c, err)
	}

	requestPayload, _ := json.Marshal(snapshot)
	analysis, err := h.Service.AnalyzeSpending(ctx, snapshot)
	if err != nil {
		h.logRequest(ctx, principal.ID, analysis.Prompt, requestPayload, analysis.Raw, err)
		slog.WarnContext(ctx, "ai analyze spending failed",
			slog.String("component", "insights"),
			slog.String("client_id", principal.ID.String()),
			slog.String("provider", h.Service.Provider()),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "ai service unavailable"})
	}

	response := analysis.Advice
	responsePayload, _ := json.Marshal(response)
	h.logRequest(ctx, principal.ID, analysis.Prompt, requestPayload, responsePayload, nil)

	if h.Publisher != nil {
		h.Publisher.Publish(principal.ID, notifications.Event{
			Type: notifications.EventInsightsReady,
			Data: map[string]interface{}{"period": snapshot.Period, "count": len(response.Advices)},
		})
	}

	return c.JSON(http.StatusOK, InsightsResponse{
		Period:   snapshot.Period,
		Summary:  response.Summary,
		Advices:  response.Advices,
		Provider: h.Service.Provider(),
		Model:    h.Service.Model(),
	})
}

func (h *InsightsHandler) buildSnapshot(ctx context.Context, clientID uuid.UUID, year, month int, today time.Time) (ai.SpendingSnapshot, error) {
	b, err := h.Budgets.GetForMonth(ctx, clientID, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ai.SpendingSnapshot{}, budget.ErrNoBudget
		}
		return ai.SpendingSnapshot{}, err
	}

	summary, err := h.Budget.Summarize(ctx, b)
	if err != nil {
		return ai.SpendingSnapshot{}, err
	}

	transactions, err := h.Transactions.ListMonth(ctx, clientID, budget.MonthStart(year, month), budget.MonthEnd(year, month))
	if err != nil {
		return ai.SpendingSnapshot{}, err
	}

	currency := models.DefaultSettings().Currency
	if settings, err := h.Settings.Get(ctx); err == nil && settings.Currency != "" {
		currency = settings.Currency
	}

	snapshot := ai.SpendingSnapshot{
		Period:           fmt.Sprintf("%04d-%02d", year, month),
		Currency:         currency,
		MonthlySalary:    money(b.MonthlySalary),
		TotalBudget:      money(summary.TotalBudget),
		DailyBudget:      money(summary.DailyBudget),
		Spent:            money(summary.Spent),
		Income:           money(summary.Income),
		RemainingBalance: money(summary.RemainingBalance),
		DaysInMonth:      summary.DaysInMonth,
		DaysElapsed:      summary.DaysInMonth,
		Categories:       categorySpend(transactions),
	}

	if today.Year() == year && int(today.Month()) == month {
		snapshot.DaysElapsed = today.Day()
		if status, err := h.Budget.DailyStatus(ctx, clientID, today); err == nil {
			remaining := money(status.RemainingBalance)
			snapshot.TodayRemaining = &remaining
		}
	}

	return snapshot, nil
}

// categorySpend суммирует расходы по категориям, крупные сверху.
func categorySpend(transactions []models.DailyTransaction) []ai.CategorySpend {
	expenses := make([]models.DailyTransaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Type == models.TransactionTypeExpense {
			expenses = append(expenses, tx)
		}
	}

	groups, _ := budget.Aggregate(expenses, budget.GroupByCategory)
	labels := groupLabels(expenses, budget.GroupByCategory)

	result := make([]ai.CategorySpend, 0, len(groups))
	for _, key := range budget.SortedKeys(groups) {
		name := labels[key]
		if name == "" {
			name = budget.UnknownKey
		}
		result = append(result, ai.CategorySpend{
			Name:   name,
			Amount: money(groups[key].Expense),
			Count:  groups[key].Count,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Amount.GreaterThan(result[j].Amount)
	})
	return result
}

func (h *InsightsHandler) logRequest(ctx context.Context, clientID uuid.UUID, prompt string, requestPayload, responsePayload []byte, callErr error) {
	if h.AILog == nil {
		return
	}

	if len(responsePayload) > 0 && !json.Valid(responsePayload) {
		responsePayload = nil
	}

	entry := repository.AIRequestLog{
		ClientID:        clientID,
		RequestType:     aiRequestAnalyzeSpending,
		Provider:        h.Service.Provider(),
		Model:           h.Service.Model(),
		Prompt:          prompt,
		RequestPayload:  requestPayload,
		ResponsePayload: responsePayload,
		Success:         callErr == nil,
	}
	if callErr != nil {
		message := callErr.Error()
		entry.ErrorMessage = &message
	}

	if err := h.AILog.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "log ai request",
			slog.String("component", "insights"),
			slog.String("error", err.Error()),
		)
	}
}
