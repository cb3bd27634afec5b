package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	defaultBalanceMonths = 6
	maxBalanceMonths     = 24
	maxTrendDays         = 366
)

type AnalyticsHandler struct {
	Transactions TransactionStore
	Calendar     Calendar
}

func NewAnalyticsHandler(transactions TransactionStore, calendar Calendar) *AnalyticsHandler {
	return &AnalyticsHandler{Transactions: transactions, Calendar: calendar}
}

type CategorySpendingItem struct {
	CategoryID   *uuid.UUID      `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
	Count        int             `json:"count"`
}

type CategorySpendingResponse struct {
	ClientID   uuid.UUID              `json:"clientId"`
	Total      decimal.Decimal        `json:"total"`
	Categories []CategorySpendingItem `json:"categories"`
}

type MonthlyBalanceItem struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type DailyTrendItem struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type MonthlyBalanceResponse struct {
	ClientID uuid.UUID            `json:"clientId"`
	Months   []MonthlyBalanceItem `json:"months"`
}

// CategorySpending возвращает расходы клиента по категориям за период.
func (h *AnalyticsHandler) CategorySpending(c echo.Context) error {
	clientID, err := analyticsClient(c)
	if err != nil {
		return err
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	expense := models.TransactionTypeExpense
	transactions, err := h.Transactions.ListAll(c.Request().Context(), repository.TransactionFilter{
		ClientID: &clientID,
		Type:     &expense,
		From:     from,
		To:       to,
	})
	if err != nil {
		return serverError(c, err)
	}

	groups, err := budget.Aggregate(transactions, budget.GroupByCategory)
	if err != nil {
		return serverError(c, err)
	}

	total := budget.Summarize(transactions).Expense
	labels := groupLabels(transactions, budget.GroupByCategory)

	response := CategorySpendingResponse{
		ClientID:   clientID,
		Total:      money(total),
		Categories: make([]CategorySpendingItem, 0, len(groups)),
	}
	for _, key := range budget.SortedKeys(groups) {
		group := groups[key]
		item := CategorySpendingItem{
			CategoryName: labels[key],
			Amount:       money(group.Expense),
			Percentage:   decimal.Zero,
			Count:        group.Count,
		}
		if key != budget.UnknownKey {
			if id, err := uuid.Parse(key); err == nil {
				item.CategoryID = &id
			}
		} else {
			item.CategoryName = "Sem categoria"
		}
		if total.IsPositive() {
			item.Percentage = group.Expense.Mul(hundred).Div(total).Round(2)
		}
		response.Categories = append(response.Categories, item)
	}

	return c.JSON(http.StatusOK, response)
}

// MonthlyBalance возвращает доходы, расходы и баланс за последние месяцы,
// включая месяцы без транзакций.
func (h *AnalyticsHandler) MonthlyBalance(c echo.Context) error {
	clientID, err := analyticsClient(c)
	if err != nil {
		return err
	}

	months := defaultBalanceMonths
	if raw := strings.TrimSpace(c.QueryParam("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxBalanceMonths {
			return badRequest(c, fmt.Sprintf("months must be between 1 and %d", maxBalanceMonths))
		}
		months = parsed
	}

	since := monthsAgo(h.Calendar.Today(), months)
	balances, err := h.Transactions.MonthlyBalances(c.Request().Context(), clientID, since)
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, MonthlyBalanceResponse{
		ClientID: clientID,
		Months:   fillMonths(since, months, balances),
	})
}

// DailyTrend возвращает доходы и расходы клиента по дням периода, включая дни
// без транзакций. По умолчанию период начинается с первого числа текущего месяца
// и заканчивается сегодня.
func (h *AnalyticsHandler) DailyTrend(c echo.Context) error {
	clientID, err := analyticsClient(c)
	if err != nil {
		return err
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if to == nil {
		today := h.Calendar.Today()
		to = &today
	}
	if from == nil {
		start := budget.MonthStart(to.Year(), int(to.Month()))
		from = &start
	}
	if to.Before(*from) {
		return badRequest(c, "endDate must not be before startDate")
	}
	if to.Sub(*from) >= maxTrendDays*24*time.Hour {
		return badRequest(c, fmt.Sprintf("period must not exceed %d days", maxTrendDays))
	}

	transactions, err := h.Transactions.ListAll(c.Request().Context(), repository.TransactionFilter{
		ClientID: &clientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return serverError(c, err)
	}

	groups, err := budget.Aggregate(transactions, budget.GroupByDate)
	if err != nil {
		return serverError(c, err)
	}

	items := make([]DailyTrendItem, 0, int(to.Sub(*from)/(24*time.Hour))+1)
	for day := *from; !day.After(*to); day = day.AddDate(0, 0, 1) {
		totals := groups[formatDate(day)]
		items = append(items, DailyTrendItem{
			Date:    formatDate(day),
			Income:  money(totals.Income),
			Expense: money(totals.Expense),
			Balance: money(totals.Balance()),
		})
	}

	return c.JSON(http.StatusOK, items)
}

func analyticsClient(c echo.Context) (uuid.UUID, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return uuid.Nil, errUnauthorized
	}

	clientID, err := parseUUIDParam(c, "clientId")
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid client id")
	}
	if !principal.CanAccessClient(clientID) {
		return uuid.Nil, errAccessDenied
	}
	return clientID, nil
}

// monthsAgo возвращает первый день месяца, отстоящего на n-1 месяцев от today.
func monthsAgo(today time.Time, n int) time.Time {
	start := budget.MonthStart(today.Year(), int(today.Month()))
	return start.AddDate(0, -(n - 1), 0)
}

func fillMonths(since time.Time, months int, balances []repository.MonthlyBalance) []MonthlyBalanceItem {
	byMonth := make(map[string]repository.MonthlyBalance, len(balances))
	for _, b := range balances {
		byMonth[fmt.Sprintf("%04d-%02d", b.Year, b.Month)] = b
	}

	items := make([]MonthlyBalanceItem, 0, months)
	for i := 0; i < months; i++ {
		month := since.AddDate(0, i, 0)
		label := month.Format("2006-01")
		item := MonthlyBalanceItem{
			Year:    month.Year(),
			Month:   int(month.Month()),
			Label:   label,
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Balance: decimal.Zero,
		}
		if b, ok := byMonth[label]; ok {
			item.Income = money(b.Income)
			item.Expense = money(b.Expense)
			item.Balance = money(b.Income.Sub(b.Expense))
		}
		items = append(items, item)
	}
	return items
}
