package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

// Интерфейсы хранилищ, которые нужны обработчикам. Реализации лежат в
// internal/repository, в тестах их заменяют in-memory версии.

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string, role models.UserRole) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	List(ctx context.Context, filter repository.UserFilter, page repository.Page) ([]models.User, int, error)
	Update(ctx context.Context, id uuid.UUID, update repository.UserUpdate) (models.User, error)
}

type ClientStore interface {
	Create(ctx context.Context, input repository.ClientInput, passwordHash string) (models.Client, error)
	Update(ctx context.Context, id uuid.UUID, input repository.ClientInput) (models.Client, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, phone, address *string) (models.Client, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Client, error)
	GetByEmail(ctx context.Context, email string) (models.Client, error)
	List(ctx context.Context, filter repository.ClientFilter, page repository.Page) ([]models.Client, int, error)
	Stats(ctx context.Context) (repository.ClientStats, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	GetByID(ctx context.Context, id uuid.UUID) (models.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForSubject(ctx context.Context, kind string, subjectID uuid.UUID) error
	Rotate(ctx context.Context, oldID uuid.UUID, newToken models.RefreshToken) error
}

type CategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Category, error)
	Create(ctx context.Context, name string, description *string) (models.Category, error)
	Update(ctx context.Context, id uuid.UUID, name string, description *string) (models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TransactionStore interface {
	Create(ctx context.Context, input repository.TransactionInput) (models.DailyTransaction, error)
	List(ctx context.Context, filter repository.TransactionFilter, page repository.Page) ([]models.DailyTransaction, int, error)
	ListAll(ctx context.Context, filter repository.TransactionFilter) ([]models.DailyTransaction, error)
	ListMonth(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.DailyTransaction, error)
	Recent(ctx context.Context, clientID *uuid.UUID, limit int) ([]models.DailyTransaction, error)
	Totals(ctx context.Context, filter repository.TransactionFilter) (repository.TransactionTotals, error)
	MonthlyBalances(ctx context.Context, clientID uuid.UUID, since time.Time) ([]repository.MonthlyBalance, error)
}

type BudgetStore interface {
	GetOrCreate(ctx context.Context, defaults models.MonthlyBudget) (models.MonthlyBudget, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.MonthlyBudget, error)
	GetForMonth(ctx context.Context, clientID uuid.UUID, year, month int) (models.MonthlyBudget, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.MonthlyBudget, error)
	List(ctx context.Context, page repository.Page) ([]repository.BudgetWithClient, int, error)
	Update(ctx context.Context, id uuid.UUID, update repository.BudgetUpdate) (models.MonthlyBudget, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, settings models.Settings) (models.Settings, error)
}

type AIRequestStore interface {
	Record(ctx context.Context, entry repository.AIRequestLog) error
	List(ctx context.Context, filter repository.AIRequestFilter, page repository.Page) ([]repository.AIRequestRecord, int, error)
}

type UsageStore interface {
	Stats(ctx context.Context, days int) (repository.UsageStats, error)
}

// Calendar возвращает текущую дату в таймзоне приложения.
type Calendar interface {
	Today() time.Time
}
