package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const dashboardRecentLimit = 5

type DashboardHandler struct {
	Transactions TransactionStore
	Budget       *budget.Service
}

func NewDashboardHandler(transactions TransactionStore, budgetService *budget.Service) *DashboardHandler {
	return &DashboardHandler{Transactions: transactions, Budget: budgetService}
}

type DashboardTotals struct {
	Transactions int             `json:"transactions"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
}

type ClientDashboardResponse struct {
	Totals             DashboardTotals           `json:"totals"`
	RecentTransactions []models.DailyTransaction `json:"recentTransactions"`
	DailyStatus        DailyStatusResponse       `json:"dailyStatus"`
}

// ClientDashboard собирает итоги, последние транзакции и дневной лимит клиента.
func (h *DashboardHandler) ClientDashboard(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || !principal.IsClient() {
		return forbidden(c)
	}

	clientID := principal.ID
	today := h.Budget.Today()

	var (
		totals repository.TransactionTotals
		recent []models.DailyTransaction
		status = DailyStatusResponse{Configured: false, Date: formatDate(today)}
	)

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		var err error
		totals, err = h.Transactions.Totals(ctx, repository.TransactionFilter{ClientID: &clientID})
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = h.Transactions.Recent(ctx, &clientID, dashboardRecentLimit)
		return err
	})
	g.Go(func() error {
		daily, err := h.Budget.DailyStatus(ctx, clientID, today)
		if err != nil {
			if errors.Is(err, budget.ErrNoBudget) {
				return nil
			}
			return err
		}
		status = dailyStatusResponse(daily)
		return nil
	})
	if err := g.Wait(); err != nil {
		return serverError(c, err)
	}

	if recent == nil {
		recent = []models.DailyTransaction{}
	}

	return c.JSON(http.StatusOK, ClientDashboardResponse{
		Totals: DashboardTotals{
			Transactions: totals.Count,
			Income:       money(totals.Income),
			Expense:      money(totals.Expense),
			Balance:      money(totals.Income.Sub(totals.Expense)),
		},
		RecentTransactions: recent,
		DailyStatus:        status,
	})
}
