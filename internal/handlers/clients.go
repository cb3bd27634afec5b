package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/format"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	defaultClientsLimit = 10
	maxClientsLimit     = 100
	recentActivityLimit = 10
)

type ClientHandler struct {
	Clients      ClientStore
	Transactions TransactionStore
	Calendar     Calendar
}

func NewClientHandler(clients ClientStore, transactions TransactionStore, calendar Calendar) *ClientHandler {
	return &ClientHandler{
		Clients:      clients,
		Transactions: transactions,
		Calendar:     calendar,
	}
}

type ClientRequest struct {
	Name          string           `json:"name" validate:"required,min=2,max=100"`
	Email         string           `json:"email" validate:"required,email"`
	Password      string           `json:"password" validate:"omitempty,min=6"`
	Phone         *string          `json:"phone" validate:"omitempty,phone"`
	Address       *string          `json:"address" validate:"omitempty,max=255"`
	CPF           string           `json:"cpf" validate:"required,cpf"`
	Birthday      *string          `json:"birthday"`
	Salary        *decimal.Decimal `json:"salary"`
	City          *string          `json:"city" validate:"omitempty,max=100"`
	State         *string          `json:"state" validate:"omitempty,max=50"`
	ZipCode       *string          `json:"zipCode" validate:"omitempty,max=20"`
	Complement    *string          `json:"complement" validate:"omitempty,max=255"`
	MaritalStatus *string          `json:"maritalStatus" validate:"omitempty,oneof=single married divorced widowed other"`
	Status        string           `json:"status" validate:"omitempty,oneof=active inactive pending suspended"`
	IsActive      *bool            `json:"isActive"`
	ManagerID     *uuid.UUID       `json:"managerId"`
}

type ClientListResponse struct {
	Clients    []models.Client    `json:"clients"`
	Pagination PaginationResponse `json:"pagination"`
}

type DashboardStatsResponse struct {
	TotalClients      int             `json:"totalClients"`
	ActiveClients     int             `json:"activeClients"`
	InactiveClients   int             `json:"inactiveClients"`
	TotalTransactions int             `json:"totalTransactions"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalExpense      decimal.Decimal `json:"totalExpense"`
	Balance           decimal.Decimal `json:"balance"`
}

type RecentActivity struct {
	ID          uuid.UUID              `json:"id"`
	ClientID    uuid.UUID              `json:"clientId"`
	ClientName  string                 `json:"clientName"`
	Description string                 `json:"description"`
	Type        models.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Formatted   string                 `json:"formattedAmount"`
	Date        string                 `json:"date"`
	When        string                 `json:"when"`
}

type TransactionSummaryResponse struct {
	ClientID uuid.UUID       `json:"clientId"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Balance  decimal.Decimal `json:"balance"`
	Count    int             `json:"count"`
}

// List возвращает страницу клиентов с поиском по имени, email и CPF.
func (h *ClientHandler) List(c echo.Context) error {
	page, pageNumber, err := parsePagination(c, defaultClientsLimit, maxClientsLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := repository.ClientFilter{Search: strings.TrimSpace(c.QueryParam("search"))}
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		status, ok := parseClientStatus(raw)
		if !ok {
			return badRequest(c, "invalid status")
		}
		filter.Status = &status
	}

	clients, total, err := h.Clients.List(c.Request().Context(), filter, page)
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, ClientListResponse{
		Clients:    clients,
		Pagination: paginationResponse(page, pageNumber, total),
	})
}

// Get возвращает клиента; клиент может запросить только себя.
func (h *ClientHandler) Get(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid client id")
	}

	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	if !principal.CanAccessClient(id) {
		return forbidden(c)
	}

	client, err := h.Clients.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "client not found")
		}
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Create(c echo.Context) error {
	var req ClientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Password == "" {
		return fieldsError(map[string]string{"password": "is required"})
	}

	input, err := clientInput(req, models.ClientStatusActive)
	if err != nil {
		return badRequest(c, err.Error())
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return serverError(c, err)
	}

	client, err := h.Clients.Create(c.Request().Context(), input, passwordHash)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "client with this email or cpf already exists")
		case errors.Is(err, repository.ErrNotFound):
			return badRequest(c, "manager not found")
		default:
			return serverError(c, err)
		}
	}

	return c.JSON(http.StatusCreated, client)
}

// Update заменяет профиль клиента; пароль меняется, только если передан.
func (h *ClientHandler) Update(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid client id")
	}

	var req ClientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	current, err := h.Clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "client not found")
		}
		return serverError(c, err)
	}

	if req.IsActive == nil {
		req.IsActive = &current.IsActive
	}
	input, err := clientInput(req, current.Status)
	if err != nil {
		return badRequest(c, err.Error())
	}

	client, err := h.Clients.Update(ctx, id, input)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "client not found")
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "client with this email or cpf already exists")
		default:
			return serverError(c, err)
		}
	}

	if req.Password != "" {
		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			return serverError(c, err)
		}
		if err := h.Clients.UpdatePassword(ctx, id, passwordHash); err != nil {
			return serverError(c, err)
		}
	}

	return c.JSON(http.StatusOK, client)
}

// Delete удаляет клиента вместе с транзакциями и бюджетами.
func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid client id")
	}

	if err := h.Clients.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "client not found")
		}
		return serverError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// DashboardStats собирает счетчики клиентов и итоги транзакций параллельно.
func (h *ClientHandler) DashboardStats(c echo.Context) error {
	var (
		stats  repository.ClientStats
		totals repository.TransactionTotals
	)

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		var err error
		stats, err = h.Clients.Stats(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = h.Transactions.Totals(ctx, repository.TransactionFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, DashboardStatsResponse{
		TotalClients:      stats.Total,
		ActiveClients:     stats.Active,
		InactiveClients:   stats.Inactive,
		TotalTransactions: totals.Count,
		TotalIncome:       money(totals.Income),
		TotalExpense:      money(totals.Expense),
		Balance:           money(totals.Income.Sub(totals.Expense)),
	})
}

// RecentActivities возвращает последние транзакции всех клиентов.
func (h *ClientHandler) RecentActivities(c echo.Context) error {
	transactions, err := h.Transactions.Recent(c.Request().Context(), nil, recentActivityLimit)
	if err != nil {
		return serverError(c, err)
	}

	today := h.Calendar.Today()
	activities := make([]RecentActivity, 0, len(transactions))
	for _, tx := range transactions {
		activities = append(activities, RecentActivity{
			ID:          tx.ID,
			ClientID:    tx.ClientID,
			ClientName:  tx.ClientName,
			Description: tx.Description,
			Type:        tx.Type,
			Amount:      money(tx.Amount),
			Formatted:   format.Currency(tx.Amount),
			Date:        formatDate(tx.Date),
			When:        format.RelativeDate(tx.Date, today),
		})
	}

	return c.JSON(http.StatusOK, activities)
}

// TransactionSummary возвращает доходы, расходы и баланс клиента за период.
func (h *ClientHandler) TransactionSummary(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid client id")
	}

	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	if !principal.CanAccessClient(id) {
		return forbidden(c)
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	totals, err := h.Transactions.Totals(c.Request().Context(), repository.TransactionFilter{
		ClientID: &id,
		From:     from,
		To:       to,
	})
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, TransactionSummaryResponse{
		ClientID: id,
		Income:   money(totals.Income),
		Expense:  money(totals.Expense),
		Balance:  money(totals.Income.Sub(totals.Expense)),
		Count:    totals.Count,
	})
}

func clientInput(req ClientRequest, defaultStatus models.ClientStatus) (repository.ClientInput, error) {
	input := repository.ClientInput{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      trimOptional(req.Phone),
		Address:    trimOptional(req.Address),
		CPF:        req.CPF,
		City:       trimOptional(req.City),
		State:      trimOptional(req.State),
		ZipCode:    trimOptional(req.ZipCode),
		Complement: trimOptional(req.Complement),
		Status:     defaultStatus,
		IsActive:   true,
		ManagerID:  req.ManagerID,
	}

	if req.Status != "" {
		status, ok := parseClientStatus(req.Status)
		if !ok {
			return repository.ClientInput{}, errors.New("invalid status")
		}
		input.Status = status
	}
	if req.IsActive != nil {
		input.IsActive = *req.IsActive
	}

	if req.Salary != nil {
		if req.Salary.IsNegative() {
			return repository.ClientInput{}, errors.New("salary must not be negative")
		}
		salary := req.Salary.Round(2)
		input.Salary = &salary
	}

	if req.MaritalStatus != nil && *req.MaritalStatus != "" {
		marital := models.MaritalStatus(*req.MaritalStatus)
		input.MaritalStatus = &marital
	}

	if req.Birthday != nil && strings.TrimSpace(*req.Birthday) != "" {
		birthday, err := budget.ParseDate(strings.TrimSpace(*req.Birthday))
		if err != nil {
			return repository.ClientInput{}, errors.New("invalid birthday")
		}
		if birthday.After(time.Now()) {
			return repository.ClientInput{}, errors.New("birthday must be in the past")
		}
		input.Birthday = &birthday
	}

	return input, nil
}

func parseClientStatus(value string) (models.ClientStatus, bool) {
	switch models.ClientStatus(strings.ToLower(strings.TrimSpace(value))) {
	case models.ClientStatusActive:
		return models.ClientStatusActive, true
	case models.ClientStatusInactive:
		return models.ClientStatusInactive, true
	case models.ClientStatusPending:
		return models.ClientStatusPending, true
	case models.ClientStatusSuspended:
		return models.ClientStatusSuspended, true
	default:
		return "", false
	}
}
