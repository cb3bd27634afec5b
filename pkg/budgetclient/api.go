package budgetclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Login входит по email и паролю и инициализирует сессию.
func (c *Client) Login(ctx context.Context, email, password string) (Account, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}
	return c.startSession(resp)
}

// Register регистрирует клиента (или сотрудника, если сессия принадлежит
// администратору). Без активной сессии новая сессия открывается сразу.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	var resp authResponse
	authenticated := c.session.Authenticated()
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &resp, authenticated); err != nil {
		return nil, err
	}
	if authenticated {
		return accountFrom(resp.Type, resp.User, resp.Client)
	}
	return c.startSession(resp)
}

// Logout отзывает refresh-токен и очищает сессию даже при ошибке API.
func (c *Client) Logout(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	defer c.session.Clear()

	if refreshToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"refreshToken": refreshToken}, nil, false)
}

func (c *Client) Profile(ctx context.Context) (Account, error) {
	var resp struct {
		Type   string      `json:"type"`
		User   *User       `json:"user,omitempty"`
		Client *ClientInfo `json:"client,omitempty"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return accountFrom(resp.Type, resp.User, resp.Client)
}

// DailyStatus возвращает дневной лимит на дату (YYYY-MM-DD, пусто = сегодня).
// clientID обязателен для администратора и игнорируется для клиента.
func (c *Client) DailyStatus(ctx context.Context, date string, clientID *uuid.UUID) (DailyStatus, error) {
	query := url.Values{}
	if date != "" {
		query.Set("date", date)
	}
	if clientID != nil {
		query.Set("clientId", clientID.String())
	}

	var status DailyStatus
	err := c.do(ctx, http.MethodGet, "/monthly-budgets/daily-status", query, nil, &status, true)
	return status, err
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &categories, true)
	return categories, err
}

func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (Transaction, error) {
	var tx Transaction
	err := c.do(ctx, http.MethodPost, "/daily-transactions", nil, req, &tx, true)
	return tx, err
}

func (c *Client) ClientTransactions(ctx context.Context, clientID uuid.UUID, q TransactionQuery) (TransactionPage, error) {
	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.StartDate != "" {
		query.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		query.Set("endDate", q.EndDate)
	}
	if q.Type != "" {
		query.Set("type", q.Type)
	}

	var page TransactionPage
	err := c.do(ctx, http.MethodGet, "/daily-transactions/client/"+clientID.String(), query, nil, &page, true)
	return page, err
}

// MonthlyBudget возвращает бюджет месяца, создавая его при первом обращении.
func (c *Client) MonthlyBudget(ctx context.Context, clientID uuid.UUID, year, month int) (MonthlyBudget, error) {
	var budget MonthlyBudget
	path := fmt.Sprintf("/monthly-budgets/clients/%s/year/%d/month/%d", clientID, year, month)
	err := c.do(ctx, http.MethodGet, path, nil, nil, &budget, true)
	return budget, err
}

func (c *Client) UpdateSalary(ctx context.Context, budgetID uuid.UUID, salary decimal.Decimal) (MonthlyBudget, error) {
	var budget MonthlyBudget
	err := c.do(ctx, http.MethodPatch, "/monthly-budgets/"+budgetID.String()+"/salary", nil,
		map[string]decimal.Decimal{"monthlySalary": salary}, &budget, true)
	return budget, err
}

func (c *Client) UpdateBudget(ctx context.Context, budgetID uuid.UUID, amount decimal.Decimal, isPercentage bool) (MonthlyBudget, error) {
	var budget MonthlyBudget
	err := c.do(ctx, http.MethodPatch, "/monthly-budgets/"+budgetID.String()+"/budget", nil, map[string]interface{}{
		"budgetAmount": amount,
		"isPercentage": isPercentage,
	}, &budget, true)
	return budget, err
}

func (c *Client) startSession(resp authResponse) (Account, error) {
	account, err := accountFrom(resp.Type, resp.User, resp.Client)
	if err != nil {
		return nil, err
	}
	if err := c.session.Init(resp.Token, resp.RefreshToken, account); err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	return account, nil
}

func accountFrom(kind string, user *User, client *ClientInfo) (Account, error) {
	switch {
	case kind == KindClient && client != nil:
		return ClientAccount{Client: *client}, nil
	case kind == KindAdmin && user != nil:
		return AdminAccount{User: *user}, nil
	default:
		return nil, errors.New("unexpected account in response")
	}
}
