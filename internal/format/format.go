// Package format отвечает за человекочитаемые суммы и даты для экспорта и
// текстов уведомлений (pt-BR).
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/budget"
)

// Currency форматирует сумму как "R$ 1.234,56", отрицательные как "-R$ 1.234,56".
// Округление до копеек выполняется в decimal, без перевода во float64.
func Currency(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	_, cents, _ := strings.Cut(rounded.StringFixed(2), ".")
	whole := strings.ReplaceAll(humanize.BigComma(rounded.BigInt()), ",", ".")
	return fmt.Sprintf("%sR$ %s,%s", sign, whole, cents)
}

// Date форматирует календарную дату как dd/mm/yyyy.
func Date(t time.Time) string {
	return t.Format("02/01/2006")
}

// RelativeDate возвращает "Hoje", "Ontem" или дату dd/mm/yyyy относительно today.
func RelativeDate(t, today time.Time) string {
	day := budget.Day(t)
	current := budget.Day(today)
	switch {
	case day.Equal(current):
		return "Hoje"
	case day.Equal(current.AddDate(0, 0, -1)):
		return "Ontem"
	default:
		return Date(day)
	}
}
