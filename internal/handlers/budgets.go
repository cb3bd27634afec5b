package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/notifications"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	defaultBudgetsLimit = 20
	maxBudgetsLimit     = 100
)

var hundred = decimal.NewFromInt(100)

type BudgetHandler struct {
	Budgets   BudgetStore
	Clients   ClientStore
	Budget    *budget.Service
	Publisher notifications.Publisher
}

func NewBudgetHandler(budgets BudgetStore, clients ClientStore, budgetService *budget.Service, publisher notifications.Publisher) *BudgetHandler {
	return &BudgetHandler{
		Budgets:   budgets,
		Clients:   clients,
		Budget:    budgetService,
		Publisher: publisher,
	}
}

type UpdateSalaryRequest struct {
	MonthlySalary *decimal.Decimal `json:"monthlySalary" validate:"required"`
}

type UpdateBudgetAmountRequest struct {
	BudgetAmount *decimal.Decimal `json:"budgetAmount" validate:"required"`
	IsPercentage *bool            `json:"isPercentage" validate:"required"`
}

type UpdateBudgetRequest struct {
	MonthlySalary *decimal.Decimal `json:"monthlySalary"`
	BudgetAmount  *decimal.Decimal `json:"budgetAmount"`
	IsPercentage  *bool            `json:"isPercentage"`
}

// BudgetResponse дополняет бюджет производными значениями месяца.
type BudgetResponse struct {
	models.MonthlyBudget
	ClientName       string          `json:"clientName,omitempty"`
	ClientEmail      string          `json:"clientEmail,omitempty"`
	DaysInMonth      int             `json:"daysInMonth"`
	TotalBudget      decimal.Decimal `json:"totalBudget"`
	DailyBudget      decimal.Decimal `json:"dailyBudget"`
	Spent            decimal.Decimal `json:"spent"`
	Income           decimal.Decimal `json:"income"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}

type BudgetListResponse struct {
	Budgets    []BudgetResponse   `json:"budgets"`
	Pagination PaginationResponse `json:"pagination"`
}

// DailyStatusResponse при configured=false содержит только дату.
type DailyStatusResponse struct {
	Configured          bool                  `json:"configured"`
	Date                string                `json:"date"`
	DailyBudget         *decimal.Decimal      `json:"dailyBudget,omitempty"`
	PreviousDayBalance  *decimal.Decimal      `json:"previousDayBalance,omitempty"`
	AdjustedDailyBudget *decimal.Decimal      `json:"adjustedDailyBudget,omitempty"`
	TodaySpent          *decimal.Decimal      `json:"todaySpent,omitempty"`
	TodayIncome         *decimal.Decimal      `json:"todayIncome,omitempty"`
	RemainingBalance    *decimal.Decimal      `json:"remainingBalance,omitempty"`
	Budget              *models.MonthlyBudget `json:"budget,omitempty"`
}

type DailyHistoryResponse struct {
	Configured bool                  `json:"configured"`
	Year       int                   `json:"year"`
	Month      int                   `json:"month"`
	Days       []DailyStatusResponse `json:"days"`
}

// List возвращает страницу бюджетов всех клиентов.
func (h *BudgetHandler) List(c echo.Context) error {
	page, pageNumber, err := parsePagination(c, defaultBudgetsLimit, maxBudgetsLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	budgets, total, err := h.Budgets.List(ctx, page)
	if err != nil {
		return serverError(c, err)
	}

	response := BudgetListResponse{
		Budgets:    make([]BudgetResponse, 0, len(budgets)),
		Pagination: paginationResponse(page, pageNumber, total),
	}
	for _, item := range budgets {
		resp, err := h.budgetResponse(c, item.MonthlyBudget)
		if err != nil {
			return serverError(c, err)
		}
		resp.ClientName = item.ClientName
		resp.ClientEmail = item.ClientEmail
		response.Budgets = append(response.Budgets, resp)
	}

	return c.JSON(http.StatusOK, response)
}

// ClientBudgets возвращает все бюджеты клиента.
func (h *BudgetHandler) ClientBudgets(c echo.Context) error {
	clientID, err := h.clientParam(c)
	if err != nil {
		return err
	}

	budgets, err := h.Budgets.ListByClient(c.Request().Context(), clientID)
	if err != nil {
		return serverError(c, err)
	}

	response := make([]BudgetResponse, 0, len(budgets))
	for _, b := range budgets {
		resp, err := h.budgetResponse(c, b)
		if err != nil {
			return serverError(c, err)
		}
		response = append(response, resp)
	}

	return c.JSON(http.StatusOK, response)
}

// GetOrCreate возвращает бюджет месяца, создавая его с зарплатой из профиля клиента.
func (h *BudgetHandler) GetOrCreate(c echo.Context) error {
	clientID, err := h.clientParam(c)
	if err != nil {
		return err
	}

	year, month, err := parseYearMonth(c.Param("year"), c.Param("month"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	client, err := h.Clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "client not found")
		}
		return serverError(c, err)
	}

	defaults := models.MonthlyBudget{
		ClientID:      clientID,
		Year:          year,
		Month:         month,
		MonthlySalary: decimal.Zero,
		BudgetAmount:  decimal.Zero,
	}
	if client.Salary != nil {
		defaults.MonthlySalary = *client.Salary
	}

	b, created, err := h.Budgets.GetOrCreate(ctx, defaults)
	if err != nil {
		return serverError(c, err)
	}

	resp, err := h.budgetResponse(c, b)
	if err != nil {
		return serverError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}

func (h *BudgetHandler) Get(c echo.Context) error {
	b, err := h.loadBudget(c)
	if err != nil {
		return err
	}

	resp, err := h.budgetResponse(c, b)
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateSalary меняет зарплату месяца; дневной лимит пересчитывается на весь месяц.
func (h *BudgetHandler) UpdateSalary(c echo.Context) error {
	b, err := h.loadBudget(c)
	if err != nil {
		return err
	}

	var req UpdateSalaryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.MonthlySalary.IsNegative() {
		return badRequest(c, "monthlySalary must not be negative")
	}

	salary := req.MonthlySalary.Round(2)
	return h.applyUpdate(c, b.ID, repository.BudgetUpdate{MonthlySalary: &salary})
}

// UpdateBudget меняет сумму бюджета и режим (процент от зарплаты или фиксированная сумма).
func (h *BudgetHandler) UpdateBudget(c echo.Context) error {
	b, err := h.loadBudget(c)
	if err != nil {
		return err
	}

	var req UpdateBudgetAmountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := validateBudgetAmount(*req.BudgetAmount, *req.IsPercentage); err != nil {
		return badRequest(c, err.Error())
	}

	amount := req.BudgetAmount.Round(2)
	return h.applyUpdate(c, b.ID, repository.BudgetUpdate{BudgetAmount: &amount, IsPercentage: req.IsPercentage})
}

// Update частично меняет бюджет от имени сотрудника.
func (h *BudgetHandler) Update(c echo.Context) error {
	b, err := h.loadBudget(c)
	if err != nil {
		return err
	}

	var req UpdateBudgetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	update := repository.BudgetUpdate{IsPercentage: req.IsPercentage}
	if req.MonthlySalary != nil {
		if req.MonthlySalary.IsNegative() {
			return badRequest(c, "monthlySalary must not be negative")
		}
		salary := req.MonthlySalary.Round(2)
		update.MonthlySalary = &salary
	}

	isPercentage := b.IsPercentage
	if req.IsPercentage != nil {
		isPercentage = *req.IsPercentage
	}
	amount := b.BudgetAmount
	if req.BudgetAmount != nil {
		amount = req.BudgetAmount.Round(2)
		update.BudgetAmount = &amount
	}
	if err := validateBudgetAmount(amount, isPercentage); err != nil {
		return badRequest(c, err.Error())
	}

	return h.applyUpdate(c, b.ID, update)
}

func (h *BudgetHandler) Delete(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	if err := h.Budgets.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		return serverError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// DailyStatus возвращает дневной лимит на дату (по умолчанию сегодня).
func (h *BudgetHandler) DailyStatus(c echo.Context) error {
	clientID, err := h.clientQuery(c)
	if err != nil {
		return err
	}

	date := h.Budget.Today()
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		date, err = budget.ParseDate(raw)
		if err != nil {
			return badRequest(c, "invalid date")
		}
	}

	status, err := h.Budget.DailyStatus(c.Request().Context(), clientID, date)
	if err != nil {
		if errors.Is(err, budget.ErrNoBudget) {
			return c.JSON(http.StatusOK, DailyStatusResponse{Configured: false, Date: formatDate(date)})
		}
		if errors.Is(err, budget.ErrInvalidBudget) {
			return badRequest(c, "budget is invalid")
		}
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, dailyStatusResponse(status))
}

// DailyHistory возвращает цепочку дневных статусов за месяц.
func (h *BudgetHandler) DailyHistory(c echo.Context) error {
	clientID, err := h.clientQuery(c)
	if err != nil {
		return err
	}

	today := h.Budget.Today()
	year, month := today.Year(), int(today.Month())
	if c.QueryParam("year") != "" || c.QueryParam("month") != "" {
		year, month, err = parseYearMonth(c.QueryParam("year"), c.QueryParam("month"))
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	response := DailyHistoryResponse{Year: year, Month: month, Days: []DailyStatusResponse{}}
	history, err := h.Budget.MonthHistory(c.Request().Context(), clientID, year, month)
	if err != nil {
		if errors.Is(err, budget.ErrNoBudget) {
			return c.JSON(http.StatusOK, response)
		}
		if errors.Is(err, budget.ErrInvalidBudget) {
			return badRequest(c, "budget is invalid")
		}
		return serverError(c, err)
	}

	response.Configured = true
	for _, status := range history {
		day := dailyStatusResponse(status)
		day.Budget = nil
		response.Days = append(response.Days, day)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *BudgetHandler) applyUpdate(c echo.Context, id uuid.UUID, update repository.BudgetUpdate) error {
	ctx := c.Request().Context()
	updated, err := h.Budgets.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "budget not found")
		case errors.Is(err, repository.ErrInvalid):
			return badRequest(c, "invalid budget")
		default:
			return serverError(c, err)
		}
	}

	resp, err := h.budgetResponse(c, updated)
	if err != nil {
		return serverError(c, err)
	}

	var remaining *decimal.Decimal
	today := h.Budget.Today()
	if today.Year() == updated.Year && int(today.Month()) == updated.Month {
		if status, err := h.Budget.DailyStatus(ctx, updated.ClientID, today); err == nil {
			remaining = &status.RemainingBalance
		}
	}
	publishBudgetUpdate(h.Publisher, updated, remaining)

	return c.JSON(http.StatusOK, resp)
}

// loadBudget читает бюджет из :id и проверяет доступ к его клиенту.
func (h *BudgetHandler) loadBudget(c echo.Context) (models.MonthlyBudget, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return models.MonthlyBudget{}, errUnauthorized
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return models.MonthlyBudget{}, echo.NewHTTPError(http.StatusBadRequest, "invalid budget id")
	}

	b, err := h.Budgets.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.MonthlyBudget{}, echo.NewHTTPError(http.StatusNotFound, "budget not found")
		}
		return models.MonthlyBudget{}, err
	}

	if !principal.CanAccessClient(b.ClientID) {
		return models.MonthlyBudget{}, errAccessDenied
	}
	return b, nil
}

func (h *BudgetHandler) clientParam(c echo.Context) (uuid.UUID, error) {
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

// clientQuery: клиент читает свой бюджет, сотрудник обязан передать clientId.
func (h *BudgetHandler) clientQuery(c echo.Context) (uuid.UUID, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return uuid.Nil, errUnauthorized
	}

	requested, err := parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid clientId")
	}

	clientID, err := clientScope(principal, requested)
	if err != nil {
		return uuid.Nil, errAccessDenied
	}
	if clientID == nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "clientId is required")
	}
	return *clientID, nil
}

func (h *BudgetHandler) budgetResponse(c echo.Context, b models.MonthlyBudget) (BudgetResponse, error) {
	summary, err := h.Budget.Summarize(c.Request().Context(), b)
	if err != nil {
		return BudgetResponse{}, err
	}

	return BudgetResponse{
		MonthlyBudget:    b,
		DaysInMonth:      summary.DaysInMonth,
		TotalBudget:      money(summary.TotalBudget),
		DailyBudget:      money(summary.DailyBudget),
		Spent:            money(summary.Spent),
		Income:           money(summary.Income),
		RemainingBalance: money(summary.RemainingBalance),
	}, nil
}

func dailyStatusResponse(status budget.DailyStatus) DailyStatusResponse {
	daily := money(status.DailyBudget)
	previous := money(status.PreviousDayBalance)
	adjusted := money(status.AdjustedDailyBudget)
	spent := money(status.TodaySpent)
	income := money(status.TodayIncome)
	remaining := money(status.RemainingBalance)
	b := status.Budget

	return DailyStatusResponse{
		Configured:          true,
		Date:                formatDate(status.Date),
		DailyBudget:         &daily,
		PreviousDayBalance:  &previous,
		AdjustedDailyBudget: &adjusted,
		TodaySpent:          &spent,
		TodayIncome:         &income,
		RemainingBalance:    &remaining,
		Budget:              &b,
	}
}

func validateBudgetAmount(amount decimal.Decimal, isPercentage bool) error {
	if amount.IsNegative() {
		return errors.New("budgetAmount must not be negative")
	}
	if isPercentage && amount.GreaterThan(hundred) {
		return errors.New("budgetAmount must be at most 100 when isPercentage is true")
	}
	return nil
}

func parseYearMonth(rawYear, rawMonth string) (int, int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(rawYear))
	if err != nil || year < 2000 || year > 2100 {
		return 0, 0, errors.New("invalid year")
	}
	month, err := strconv.Atoi(strings.TrimSpace(rawMonth))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errors.New("invalid month")
	}
	return year, month, nil
}
