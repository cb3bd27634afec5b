package ai

import "github.com/shopspring/decimal"

// SpendingSnapshot описывает месяц клиента, который уходит в промпт.
type SpendingSnapshot struct {
	Period           string           `json:"period"`
	Currency         string           `json:"currency"`
	MonthlySalary    decimal.Decimal  `json:"monthly_salary"`
	TotalBudget      decimal.Decimal  `json:"total_budget"`
	DailyBudget      decimal.Decimal  `json:"daily_budget"`
	Spent            decimal.Decimal  `json:"spent"`
	Income           decimal.Decimal  `json:"income"`
	RemainingBalance decimal.Decimal  `json:"remaining_balance"`
	TodayRemaining   *decimal.Decimal `json:"today_remaining,omitempty"`
	DaysElapsed      int              `json:"days_elapsed"`
	DaysInMonth      int              `json:"days_in_month"`
	Categories       []CategorySpend  `json:"categories"`
}

type CategorySpend struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type Advice struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

type AdviceResponse struct {
	Summary string   `json:"summary"`
	Advices []Advice `json:"advices"`
}
