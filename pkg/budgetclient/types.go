package budgetclient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsActive bool      `json:"isActive"`
}

type ClientInfo struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Phone    *string          `json:"phone,omitempty"`
	Address  *string          `json:"address,omitempty"`
	CPF      string           `json:"cpf"`
	Salary   *decimal.Decimal `json:"salary,omitempty"`
	Status   string           `json:"status"`
	IsActive bool             `json:"isActive"`
}

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

type Transaction struct {
	ID                               uuid.UUID        `json:"id"`
	ClientID                         uuid.UUID        `json:"clientId"`
	CategoryID                       *uuid.UUID       `json:"categoryId,omitempty"`
	Category                         *Category        `json:"category,omitempty"`
	Description                      string           `json:"description"`
	Amount                           decimal.Decimal  `json:"amount"`
	Type                             string           `json:"type"`
	Date                             time.Time        `json:"date"`
	RemainingBalanceAfterTransaction *decimal.Decimal `json:"remainingBalanceAfterTransaction,omitempty"`
	CreatedAt                        time.Time        `json:"createdAt"`
}

type MonthlyBudget struct {
	ID               uuid.UUID       `json:"id"`
	ClientID         uuid.UUID       `json:"clientId"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	MonthlySalary    decimal.Decimal `json:"monthlySalary"`
	BudgetAmount     decimal.Decimal `json:"budgetAmount"`
	IsPercentage     bool            `json:"isPercentage"`
	DaysInMonth      int             `json:"daysInMonth"`
	TotalBudget      decimal.Decimal `json:"totalBudget"`
	DailyBudget      decimal.Decimal `json:"dailyBudget"`
	Spent            decimal.Decimal `json:"spent"`
	Income           decimal.Decimal `json:"income"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}

// DailyStatus при Configured=false содержит только дату.
type DailyStatus struct {
	Configured          bool             `json:"configured"`
	Date                string           `json:"date"`
	DailyBudget         *decimal.Decimal `json:"dailyBudget,omitempty"`
	PreviousDayBalance  *decimal.Decimal `json:"previousDayBalance,omitempty"`
	AdjustedDailyBudget *decimal.Decimal `json:"adjustedDailyBudget,omitempty"`
	TodaySpent          *decimal.Decimal `json:"todaySpent,omitempty"`
	TodayIncome         *decimal.Decimal `json:"todayIncome,omitempty"`
	RemainingBalance    *decimal.Decimal `json:"remainingBalance,omitempty"`
	Budget              *MonthlyBudget   `json:"budget,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role,omitempty"`
	CPF      string  `json:"cpf,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type CreateTransactionRequest struct {
	ClientID    *uuid.UUID      `json:"clientId,omitempty"`
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Date        string          `json:"date,omitempty"`
}

// TransactionQuery фильтрует список транзакций клиента; нулевые поля не передаются.
type TransactionQuery struct {
	Page      int
	Limit     int
	StartDate string
	EndDate   string
	Type      string
}

type authResponse struct {
	Message      string      `json:"message"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	Type         string      `json:"type"`
	User         *User       `json:"user,omitempty"`
	Client       *ClientInfo `json:"client,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
