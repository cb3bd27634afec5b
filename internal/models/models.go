package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

type UserRole string

type ClientStatus string

type MaritalStatus string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"

	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"

	ClientStatusActive    ClientStatus = "active"
	ClientStatusInactive  ClientStatus = "inactive"
	ClientStatusPending   ClientStatus = "pending"
	ClientStatusSuspended ClientStatus = "suspended"

	MaritalStatusSingle   MaritalStatus = "single"
	MaritalStatusMarried  MaritalStatus = "married"
	MaritalStatusDivorced MaritalStatus = "divorced"
	MaritalStatusWidowed  MaritalStatus = "widowed"
	MaritalStatusOther    MaritalStatus = "other"
)

// Valid сообщает, является ли значение известным типом транзакции.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// User описывает администратора или менеджера системы.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Client struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	PasswordHash  string           `json:"-"`
	Phone         *string          `json:"phone,omitempty"`
	Address       *string          `json:"address,omitempty"`
	CPF           string           `json:"cpf"`
	Birthday      *time.Time       `json:"birthday,omitempty"`
	Salary        *decimal.Decimal `json:"salary,omitempty"`
	City          *string          `json:"city,omitempty"`
	State         *string          `json:"state,omitempty"`
	ZipCode       *string          `json:"zipCode,omitempty"`
	Complement    *string          `json:"complement,omitempty"`
	MaritalStatus *MaritalStatus   `json:"maritalStatus,omitempty"`
	Status        ClientStatus     `json:"status"`
	IsActive      bool             `json:"isActive"`
	ManagerID     *uuid.UUID       `json:"managerId,omitempty"`
	LastLogin     *time.Time       `json:"lastLogin,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DailyTransaction хранит сумму всегда положительной, знак задает Type.
type DailyTransaction struct {
	ID                               uuid.UUID        `json:"id"`
	ClientID                         uuid.UUID        `json:"clientId"`
	ClientName                       string           `json:"clientName,omitempty"`
	CategoryID                       *uuid.UUID       `json:"categoryId,omitempty"`
	Category                         *Category        `json:"category,omitempty"`
	Description                      string           `json:"description"`
	Amount                           decimal.Decimal  `json:"amount"`
	Type                             TransactionType  `json:"type"`
	Date                             time.Time        `json:"date"`
	RemainingBalanceAfterTransaction *decimal.Decimal `json:"remainingBalanceAfterTransaction,omitempty"`
	CreatedAt                        time.Time        `json:"createdAt"`
	UpdatedAt                        time.Time        `json:"updatedAt"`
}

type MonthlyBudget struct {
	ID            uuid.UUID       `json:"id"`
	ClientID      uuid.UUID       `json:"clientId"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	MonthlySalary decimal.Decimal `json:"monthlySalary"`
	BudgetAmount  decimal.Decimal `json:"budgetAmount"`
	IsPercentage  bool            `json:"isPercentage"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Settings struct {
	SiteName            string `json:"siteName"`
	ContactEmail        string `json:"contactEmail"`
	AllowRegistration   bool   `json:"allowRegistration"`
	MaintenanceMode     bool   `json:"maintenanceMode"`
	EnableNotifications bool   `json:"enableNotifications"`
	Currency            string `json:"currency"`
	DateFormat          string `json:"dateFormat"`
	TimeZone            string `json:"timeZone"`
}

// DefaultSettings возвращает настройки для пустой базы.
func DefaultSettings() Settings {
	return Settings{
		SiteName:            "Daily Budget",
		AllowRegistration:   false,
		EnableNotifications: true,
		Currency:            "BRL",
		DateFormat:          "dd/MM/yyyy",
		TimeZone:            "America/Sao_Paulo",
	}
}

type AIRequest struct {
	ID              uuid.UUID       `json:"id"`
	ClientID        uuid.UUID       `json:"clientId"`
	RequestType     string          `json:"requestType"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Prompt          *string         `json:"prompt,omitempty"`
	RequestPayload  json.RawMessage `json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage `json:"responsePayload,omitempty"`
	Success         bool            `json:"success"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// RefreshToken принадлежит либо администратору, либо клиенту (SubjectKind).
type RefreshToken struct {
	ID          uuid.UUID  `json:"id"`
	SubjectID   uuid.UUID  `json:"subjectId"`
	SubjectKind string     `json:"subjectKind"`
	TokenHash   string     `json:"-"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	ReplacedBy  *uuid.UUID `json:"replacedBy,omitempty"`
}
