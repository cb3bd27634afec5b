package budget

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/models"
)

type GroupBy string

const (
	GroupByDate     GroupBy = "date"
	GroupByCategory GroupBy = "category"
	GroupByClient   GroupBy = "client"

	// UnknownKey используется как корзина для транзакций без поля группировки.
	UnknownKey = "unknown"
)

var ErrUnknownGrouping = errors.New("unknown grouping")

// Totals хранит доходы и расходы одной группы.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Count   int
}

// Balance возвращает доходы минус расходы.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// ParseGroupBy разбирает параметр группировки.
func ParseGroupBy(value string) (GroupBy, error) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(value))) {
	case GroupByDate:
		return GroupByDate, nil
	case GroupByCategory:
		return GroupByCategory, nil
	case GroupByClient:
		return GroupByClient, nil
	default:
		return "", ErrUnknownGrouping
	}
}

// Aggregate группирует транзакции и суммирует доходы/расходы в каждой группе.
func Aggregate(transactions []models.DailyTransaction, groupBy GroupBy) (map[string]Totals, error) {
	groupBy, err := ParseGroupBy(string(groupBy))
	if err != nil {
		return nil, err
	}

	groups := make(map[string]Totals)
	for _, tx := range transactions {
		key := groupKey(tx, groupBy)
		groups[key] = accumulate(groups[key], tx)
	}

	return groups, nil
}

// Summarize суммирует доходы и расходы по всему списку.
func Summarize(transactions []models.DailyTransaction) Totals {
	totals := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range transactions {
		totals = accumulate(totals, tx)
	}
	return totals
}

// SortedKeys возвращает ключи групп по возрастанию, "unknown" последним.
func SortedKeys(groups map[string]Totals) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == UnknownKey {
			return false
		}
		if keys[j] == UnknownKey {
			return true
		}
		return keys[i] < keys[j]
	})
	return keys
}

func groupKey(tx models.DailyTransaction, groupBy GroupBy) string {
	switch groupBy {
	case GroupByDate:
		if tx.Date.IsZero() {
			return UnknownKey
		}
		return tx.Date.Format(DateLayout)
	case GroupByCategory:
		if tx.CategoryID == nil || *tx.CategoryID == uuid.Nil {
			return UnknownKey
		}
		return tx.CategoryID.String()
	case GroupByClient:
		if tx.ClientID == uuid.Nil {
			return UnknownKey
		}
		return tx.ClientID.String()
	}
	return UnknownKey
}

func accumulate(totals Totals, tx models.DailyTransaction) Totals {
	totals.Count++
	switch tx.Type {
	case models.TransactionTypeIncome:
		totals.Income = totals.Income.Add(tx.Amount)
	case models.TransactionTypeExpense:
		totals.Expense = totals.Expense.Add(tx.Amount)
	}
	return totals
}
