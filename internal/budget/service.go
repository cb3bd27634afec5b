package budget

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

type BudgetStore interface {
	GetForMonth(ctx context.Context, clientID uuid.UUID, year, month int) (models.MonthlyBudget, error)
}

type TransactionLister interface {
	ListMonth(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.DailyTransaction, error)
}

// Summary содержит производные значения бюджета за месяц.
type Summary struct {
	DaysInMonth      int
	TotalBudget      decimal.Decimal
	DailyBudget      decimal.Decimal
	Spent            decimal.Decimal
	Income           decimal.Decimal
	RemainingBalance decimal.Decimal
}

// Service связывает хранилища с калькулятором дневного лимита.
type Service struct {
	budgets      BudgetStore
	transactions TransactionLister
	location     *time.Location
	now          func() time.Time
}

func NewService(budgets BudgetStore, transactions TransactionLister, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		budgets:      budgets,
		transactions: transactions,
		location:     location,
		now:          time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today возвращает текущую календарную дату в таймзоне приложения.
func (s *Service) Today() time.Time {
	return Today(s.now(), s.location)
}

// Location возвращает таймзону приложения.
func (s *Service) Location() *time.Location {
	return s.location
}

// DailyStatus считает дневной лимит клиента на дату. Без бюджета на месяц даты
// возвращает ErrNoBudget.
func (s *Service) DailyStatus(ctx context.Context, clientID uuid.UUID, date time.Time) (DailyStatus, error) {
	date = Day(date)
	b, ledger, err := s.load(ctx, clientID, date.Year(), int(date.Month()))
	if err != nil {
		return DailyStatus{}, err
	}
	return ComputeDailyStatus(b, ledger, date)
}

// MonthHistory возвращает цепочку статусов за месяц: до сегодняшнего дня для
// текущего месяца и до последнего дня для остальных.
func (s *Service) MonthHistory(ctx context.Context, clientID uuid.UUID, year, month int) ([]DailyStatus, error) {
	if month < 1 || month > 12 || year <= 0 {
		return nil, ErrInvalidBudget
	}

	b, ledger, err := s.load(ctx, clientID, year, month)
	if err != nil {
		return nil, err
	}

	through := MonthEnd(year, month)
	if today := s.Today(); today.Year() == year && int(today.Month()) == month {
		through = today
	}

	return History(b, ledger, through)
}

// BalanceAfter считает остаток дня после добавления транзакции tx.
// Возвращает nil, если на месяц транзакции бюджет не настроен.
func (s *Service) BalanceAfter(ctx context.Context, tx models.DailyTransaction) (*decimal.Decimal, error) {
	date := Day(tx.Date)
	b, err := s.budget(ctx, tx.ClientID, date.Year(), int(date.Month()))
	if err != nil {
		if errors.Is(err, ErrNoBudget) {
			return nil, nil
		}
		return nil, err
	}

	transactions, err := s.transactions.ListMonth(ctx, tx.ClientID, MonthStart(b.Year, b.Month), MonthEnd(b.Year, b.Month))
	if err != nil {
		return nil, err
	}
	transactions = append(transactions, tx)

	status, err := ComputeDailyStatus(b, NewLedger(transactions), date)
	if err != nil {
		return nil, err
	}

	remaining := status.RemainingBalance.Round(2)
	return &remaining, nil
}

// Summarize считает производные значения бюджета по транзакциям его месяца.
func (s *Service) Summarize(ctx context.Context, b models.MonthlyBudget) (Summary, error) {
	total, err := TotalBudget(b)
	if err != nil {
		return Summary{}, err
	}
	daily, err := DailyBudget(b)
	if err != nil {
		return Summary{}, err
	}

	transactions, err := s.transactions.ListMonth(ctx, b.ClientID, MonthStart(b.Year, b.Month), MonthEnd(b.Year, b.Month))
	if err != nil {
		return Summary{}, err
	}
	totals := Summarize(transactions)

	return Summary{
		DaysInMonth:      DaysInMonth(b.Year, b.Month),
		TotalBudget:      total,
		DailyBudget:      daily,
		Spent:            totals.Expense,
		Income:           totals.Income,
		RemainingBalance: total.Add(totals.Income).Sub(totals.Expense),
	}, nil
}

func (s *Service) load(ctx context.Context, clientID uuid.UUID, year, month int) (*models.MonthlyBudget, Ledger, error) {
	b, err := s.budget(ctx, clientID, year, month)
	if err != nil {
		return nil, Ledger{}, err
	}

	transactions, err := s.transactions.ListMonth(ctx, clientID, MonthStart(year, month), MonthEnd(year, month))
	if err != nil {
		return nil, Ledger{}, err
	}

	return b, NewLedger(transactions), nil
}

func (s *Service) budget(ctx context.Context, clientID uuid.UUID, year, month int) (*models.MonthlyBudget, error) {
	b, err := s.budgets.GetForMonth(ctx, clientID, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoBudget
		}
		return nil, err
	}

	// День создания бюджета считается в таймзоне приложения.
	if !b.CreatedAt.IsZero() {
		b.CreatedAt = b.CreatedAt.In(s.location)
	}
	return &b, nil
}
