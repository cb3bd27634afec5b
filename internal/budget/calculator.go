// Package budget считает дневной лимит расходов по месячному бюджету и
// агрегирует транзакции для сводок и графиков.
//
// Суммы считаются в shopspring/decimal, даты календарные (полночь UTC), см. Day.
package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/models"
)

var (
	ErrNoBudget         = errors.New("no budget configured")
	ErrDateOutsideMonth = errors.New("date is outside of the budget month")
	ErrInvalidBudget    = errors.New("invalid budget")
)

var hundred = decimal.NewFromInt(100)

// DailyStatus описывает состояние дневного лимита на конкретную дату.
type DailyStatus struct {
	Date                time.Time
	DailyBudget         decimal.Decimal
	PreviousDayBalance  decimal.Decimal
	AdjustedDailyBudget decimal.Decimal
	TodaySpent          decimal.Decimal
	TodayIncome         decimal.Decimal
	RemainingBalance    decimal.Decimal
	Budget              models.MonthlyBudget
}

// Ledger индексирует транзакции клиента по календарной дате.
type Ledger struct {
	days  map[time.Time]Totals
	first time.Time
}

// NewLedger строит индекс по датам. Транзакции с нулевой датой пропускаются.
func NewLedger(transactions []models.DailyTransaction) Ledger {
	ledger := Ledger{days: make(map[time.Time]Totals, len(transactions))}
	for _, tx := range transactions {
		if tx.Date.IsZero() {
			continue
		}
		day := Day(tx.Date)
		ledger.days[day] = accumulate(ledger.days[day], tx)
		if ledger.first.IsZero() || day.Before(ledger.first) {
			ledger.first = day
		}
	}
	return ledger
}

// Day возвращает суммы за дату; для дня без активности нули.
func (l Ledger) Day(date time.Time) Totals {
	totals, ok := l.days[Day(date)]
	if !ok {
		return Totals{Income: decimal.Zero, Expense: decimal.Zero}
	}
	return totals
}

// FirstActivity возвращает самую раннюю дату с транзакциями.
func (l Ledger) FirstActivity() (time.Time, bool) {
	return l.first, !l.first.IsZero()
}

// FirstActivityIn возвращает самую раннюю дату с транзакциями внутри месяца.
func (l Ledger) FirstActivityIn(year, month int) (time.Time, bool) {
	var first time.Time
	for day := range l.days {
		if day.Year() != year || int(day.Month()) != month {
			continue
		}
		if first.IsZero() || day.Before(first) {
			first = day
		}
	}
	return first, !first.IsZero()
}

// TotalBudget возвращает эффективный бюджет месяца.
func TotalBudget(b models.MonthlyBudget) (decimal.Decimal, error) {
	if err := validateBudget(b); err != nil {
		return decimal.Zero, err
	}

	if b.IsPercentage {
		return b.MonthlySalary.Mul(b.BudgetAmount).Div(hundred), nil
	}
	return b.BudgetAmount, nil
}

// DailyBudget делит эффективный бюджет на число дней календарного месяца.
func DailyBudget(b models.MonthlyBudget) (decimal.Decimal, error) {
	total, err := TotalBudget(b)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(decimal.NewFromInt(int64(DaysInMonth(b.Year, b.Month)))), nil
}

// TrackingStart возвращает первый отслеживаемый день месяца бюджета: самый
// ранний из дня создания бюджета и первой транзакции месяца, но не раньше
// первого числа. Бюджет без CreatedAt отслеживается с первого числа.
func TrackingStart(b models.MonthlyBudget, ledger Ledger) time.Time {
	monthStart := MonthStart(b.Year, b.Month)
	if b.CreatedAt.IsZero() {
		return monthStart
	}

	start := Day(b.CreatedAt)
	if first, ok := ledger.FirstActivityIn(b.Year, b.Month); ok && first.Before(start) {
		start = first
	}
	if start.Before(monthStart) {
		return monthStart
	}
	if start.After(MonthEnd(b.Year, b.Month)) {
		return MonthEnd(b.Year, b.Month)
	}
	return start
}

// ComputeDailyStatus считает дневной лимит на дату target.
//
// Остаток переносится через каждый календарный день от первого отслеживаемого
// дня до target-1, включая дни без транзакций. Отрицательный остаток не
// обнуляется. Без бюджета возвращается ErrNoBudget.
func ComputeDailyStatus(b *models.MonthlyBudget, ledger Ledger, target time.Time) (DailyStatus, error) {
	history, err := History(b, ledger, target)
	if err != nil {
		return DailyStatus{}, err
	}
	return history[len(history)-1], nil
}

// History возвращает цепочку статусов от первого отслеживаемого дня до through включительно.
func History(b *models.MonthlyBudget, ledger Ledger, through time.Time) ([]DailyStatus, error) {
	if b == nil {
		return nil, ErrNoBudget
	}

	through = Day(through)
	if through.Year() != b.Year || int(through.Month()) != b.Month {
		return nil, ErrDateOutsideMonth
	}

	daily, err := DailyBudget(*b)
	if err != nil {
		return nil, err
	}

	start := TrackingStart(*b, ledger)
	if through.Before(start) {
		start = through
	}

	statuses := make([]DailyStatus, 0, through.Sub(start)/(24*time.Hour)+1)
	carry := decimal.Zero
	for day := start; !day.After(through); day = day.AddDate(0, 0, 1) {
		totals := ledger.Day(day)
		adjusted := daily.Add(carry)
		remaining := adjusted.Add(totals.Income).Sub(totals.Expense)

		statuses = append(statuses, DailyStatus{
			Date:                day,
			DailyBudget:         daily,
			PreviousDayBalance:  carry,
			AdjustedDailyBudget: adjusted,
			TodaySpent:          totals.Expense,
			TodayIncome:         totals.Income,
			RemainingBalance:    remaining,
			Budget:              *b,
		})
		carry = remaining
	}

	return statuses, nil
}

func validateBudget(b models.MonthlyBudget) error {
	if b.Month < 1 || b.Month > 12 || b.Year <= 0 {
		return ErrInvalidBudget
	}
	if b.MonthlySalary.IsNegative() || b.BudgetAmount.IsNegative() {
		return ErrInvalidBudget
	}
	if b.IsPercentage && b.BudgetAmount.GreaterThan(hundred) {
		return ErrInvalidBudget
	}
	return nil
}
