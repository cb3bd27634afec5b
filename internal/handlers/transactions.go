package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

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
	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 200
)

type TransactionHandler struct {
	Transactions TransactionStore
	Categories   CategoryStore
	Budget       *budget.Service
	Publisher    notifications.Publisher
}

func NewTransactionHandler(transactions TransactionStore, categories CategoryStore, budgetService *budget.Service, publisher notifications.Publisher) *TransactionHandler {
	return &TransactionHandler{
		Transactions: transactions,
		Categories:   categories,
		Budget:       budgetService,
		Publisher:    publisher,
	}
}

type CreateTransactionRequest struct {
	ClientID    *uuid.UUID      `json:"clientId"`
	CategoryID  *uuid.UUID      `json:"categoryId"`
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"required,txtype"`
	Date        string          `json:"date"`
}

type TransactionListResponse struct {
	Transactions []models.DailyTransaction `json:"transactions"`
	Pagination   PaginationResponse        `json:"pagination"`
}

type AggregateGroup struct {
	Key     string          `json:"key"`
	Label   string          `json:"label,omitempty"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Count   int             `json:"count"`
}

type AggregateResponse struct {
	GroupBy budget.GroupBy   `json:"groupBy"`
	Groups  []AggregateGroup `json:"groups"`
	Total   AggregateGroup   `json:"total"`
}

// Create сохраняет транзакцию и считает остаток дня после нее.
func (h *TransactionHandler) Create(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateTransactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return badRequest(c, "description is required")
	}
	if !req.Amount.IsPositive() {
		return badRequest(c, "amount must be greater than 0")
	}

	clientID, err := clientScope(principal, req.ClientID)
	if err != nil {
		return forbidden(c)
	}
	if clientID == nil {
		return badRequest(c, "clientId is required")
	}

	date := h.Budget.Today()
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err = parseTransactionDate(raw)
		if err != nil {
			return badRequest(c, "invalid date")
		}
	}

	ctx := c.Request().Context()
	if req.CategoryID != nil {
		if _, err := h.Categories.GetByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return badRequest(c, "category not found")
			}
			return serverError(c, err)
		}
	}

	tx := models.DailyTransaction{
		ClientID:    *clientID,
		CategoryID:  req.CategoryID,
		Description: description,
		Amount:      req.Amount.Round(2),
		Type:        models.TransactionType(req.Type),
		Date:        date,
	}

	remaining, err := h.Budget.BalanceAfter(ctx, tx)
	if err != nil {
		return serverError(c, err)
	}

	created, err := h.Transactions.Create(ctx, repository.TransactionInput{
		ClientID:         tx.ClientID,
		CategoryID:       tx.CategoryID,
		Description:      tx.Description,
		Amount:           tx.Amount,
		Type:             tx.Type,
		Date:             tx.Date,
		RemainingBalance: remaining,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return badRequest(c, "client or category not found")
		case errors.Is(err, repository.ErrInvalid):
			return badRequest(c, "invalid transaction")
		default:
			return serverError(c, err)
		}
	}

	publishTransactionCreated(h.Publisher, created)
	publishDailyBalance(h.Publisher, created.ClientID, created.Date, remaining)

	return c.JSON(http.StatusCreated, created)
}

// List возвращает страницу транзакций всех клиентов с фильтрами.
func (h *TransactionHandler) List(c echo.Context) error {
	filter, err := transactionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	clientID, err := parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid clientId")
	}
	filter.ClientID = clientID

	return h.list(c, filter)
}

// ClientTransactions возвращает транзакции одного клиента.
func (h *TransactionHandler) ClientTransactions(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	clientID, err := parseUUIDParam(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid client id")
	}
	if !principal.CanAccessClient(clientID) {
		return forbidden(c)
	}

	filter, err := transactionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter.ClientID = &clientID

	return h.list(c, filter)
}

// DateRange возвращает транзакции за обязательный период.
func (h *TransactionHandler) DateRange(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	filter, err := transactionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if filter.From == nil || filter.To == nil {
		return badRequest(c, "startDate and endDate are required")
	}

	requested, err := parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid clientId")
	}
	filter.ClientID, err = clientScope(principal, requested)
	if err != nil {
		return forbidden(c)
	}

	return h.list(c, filter)
}

// Aggregate группирует транзакции по дате, категории или клиенту.
func (h *TransactionHandler) Aggregate(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	groupBy, err := budget.ParseGroupBy(c.QueryParam("groupBy"))
	if err != nil {
		return badRequest(c, "groupBy must be one of: date category client")
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	requested, err := parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid clientId")
	}
	clientID, err := clientScope(principal, requested)
	if err != nil {
		return forbidden(c)
	}

	ctx := c.Request().Context()
	transactions, err := h.Transactions.ListAll(ctx, repository.TransactionFilter{
		ClientID: clientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return serverError(c, err)
	}

	groups, err := budget.Aggregate(transactions, groupBy)
	if err != nil {
		return badRequest(c, err.Error())
	}

	labels := groupLabels(transactions, groupBy)
	response := AggregateResponse{
		GroupBy: groupBy,
		Groups:  make([]AggregateGroup, 0, len(groups)),
		Total:   aggregateGroup("total", "", budget.Summarize(transactions)),
	}
	for _, key := range budget.SortedKeys(groups) {
		response.Groups = append(response.Groups, aggregateGroup(key, labels[key], groups[key]))
	}

	return c.JSON(http.StatusOK, response)
}

func (h *TransactionHandler) list(c echo.Context, filter repository.TransactionFilter) error {
	page, pageNumber, err := parsePagination(c, defaultTransactionsLimit, maxTransactionsLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	transactions, total, err := h.Transactions.List(c.Request().Context(), filter, page)
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, TransactionListResponse{
		Transactions: transactions,
		Pagination:   paginationResponse(page, pageNumber, total),
	})
}

// transactionFilter разбирает общие фильтры: период, тип и категорию.
func transactionFilter(c echo.Context) (repository.TransactionFilter, error) {
	from, to, err := parseDateRange(c)
	if err != nil {
		return repository.TransactionFilter{}, err
	}

	filter := repository.TransactionFilter{From: from, To: to}

	if raw := strings.TrimSpace(c.QueryParam("type")); raw != "" {
		txType := models.TransactionType(strings.ToLower(raw))
		if !txType.Valid() {
			return repository.TransactionFilter{}, errors.New("invalid type")
		}
		filter.Type = &txType
	}

	categoryID, err := parseOptionalUUIDQuery(c, "categoryId")
	if err != nil {
		return repository.TransactionFilter{}, errors.New("invalid categoryId")
	}
	filter.CategoryID = categoryID

	return filter, nil
}

// parseTransactionDate принимает YYYY-MM-DD или RFC3339; время отбрасывается.
func parseTransactionDate(raw string) (time.Time, error) {
	if date, err := budget.ParseDate(raw); err == nil {
		return date, nil
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return budget.Day(parsed), nil
}

// groupLabels подбирает человекочитаемые подписи для категорий и клиентов.
func groupLabels(transactions []models.DailyTransaction, groupBy budget.GroupBy) map[string]string {
	labels := make(map[string]string)
	for _, tx := range transactions {
		switch groupBy {
		case budget.GroupByCategory:
			if tx.Category != nil {
				labels[tx.Category.ID.String()] = tx.Category.Name
			}
		case budget.GroupByClient:
			if tx.ClientName != "" {
				labels[tx.ClientID.String()] = tx.ClientName
			}
		}
	}
	return labels
}

func aggregateGroup(key, label string, totals budget.Totals) AggregateGroup {
	return AggregateGroup{
		Key:     key,
		Label:   label,
		Income:  money(totals.Income),
		Expense: money(totals.Expense),
		Balance: money(totals.Balance()),
		Count:   totals.Count,
	}
}
