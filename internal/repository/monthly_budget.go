package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/models"
)

const budgetColumns = `id, client_id, year, month, monthly_salary, budget_amount, is_percentage, created_at, updated_at`

type MonthlyBudgetRepository struct {
	db *pgxpool.Pool
}

// BudgetWithClient дополняет бюджет данными клиента для админских списков.
type BudgetWithClient struct {
	models.MonthlyBudget
	ClientName  string
	ClientEmail string
}

// BudgetUpdate описывает частичное изменение бюджета; nil-поля не меняются.
type BudgetUpdate struct {
	MonthlySalary *decimal.Decimal
	BudgetAmount  *decimal.Decimal
	IsPercentage  *bool
}

// NewMonthlyBudgetRepository создает репозиторий месячных бюджетов.
func NewMonthlyBudgetRepository(db *pgxpool.Pool) *MonthlyBudgetRepository {
	return &MonthlyBudgetRepository{db: db}
}

// Create создает бюджет. Повтор для того же клиента и месяца дает ErrConflict.
func (r *MonthlyBudgetRepository) Create(ctx context.Context, budget models.MonthlyBudget) (models.MonthlyBudget, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO monthly_budgets (client_id, year, month, monthly_salary, budget_amount, is_percentage)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+budgetColumns,
		budget.ClientID, budget.Year, budget.Month, budget.MonthlySalary, budget.BudgetAmount, budget.IsPercentage,
	)

	created, err := scanBudget(row)
	if err != nil {
		return created, mapWriteError(err)
	}
	return created, nil
}

// GetOrCreate возвращает бюджет месяца, создавая его из defaults при отсутствии.
// Второй результат сообщает, что бюджет был создан.
func (r *MonthlyBudgetRepository) GetOrCreate(ctx context.Context, defaults models.MonthlyBudget) (models.MonthlyBudget, bool, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO monthly_budgets (client_id, year, month, monthly_salary, budget_amount, is_percentage)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (client_id, year, month) DO NOTHING
		 RETURNING `+budgetColumns,
		defaults.ClientID, defaults.Year, defaults.Month, defaults.MonthlySalary, defaults.BudgetAmount, defaults.IsPercentage,
	)

	created, err := scanBudget(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return created, false, mapWriteError(err)
	}

	existing, err := r.GetForMonth(ctx, defaults.ClientID, defaults.Year, defaults.Month)
	return existing, false, err
}

// GetByID возвращает бюджет по идентификатору.
func (r *MonthlyBudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (models.MonthlyBudget, error) {
	row := r.db.QueryRow(ctx, `SELECT `+budgetColumns+` FROM monthly_budgets WHERE id = $1`, id)
	return scanBudgetOrNotFound(row)
}

// GetForMonth возвращает бюджет клиента за год и месяц.
func (r *MonthlyBudgetRepository) GetForMonth(ctx context.Context, clientID uuid.UUID, year, month int) (models.MonthlyBudget, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+budgetColumns+`
		 FROM monthly_budgets
		 WHERE client_id = $1 AND year = $2 AND month = $3`,
		clientID, year, month,
	)
	return scanBudgetOrNotFound(row)
}

// ListByClient возвращает бюджеты клиента, новые сверху.
func (r *MonthlyBudgetRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.MonthlyBudget, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+budgetColumns+`
		 FROM monthly_budgets
		 WHERE client_id = $1
		 ORDER BY year DESC, month DESC`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]models.MonthlyBudget, 0)
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}

	return budgets, rows.Err()
}

// List возвращает страницу бюджетов всех клиентов.
func (r *MonthlyBudgetRepository) List(ctx context.Context, page Page) ([]BudgetWithClient, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM monthly_budgets`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.client_id, b.year, b.month, b.monthly_salary, b.budget_amount, b.is_percentage,
		        b.created_at, b.updated_at, c.name, c.email
		 FROM monthly_budgets b
		 JOIN clients c ON c.id = b.client_id
		 ORDER BY b.year DESC, b.month DESC, c.name
		 LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	budgets := make([]BudgetWithClient, 0)
	for rows.Next() {
		var item BudgetWithClient
		if err := rows.Scan(
			&item.ID,
			&item.ClientID,
			&item.Year,
			&item.Month,
			&item.MonthlySalary,
			&item.BudgetAmount,
			&item.IsPercentage,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.ClientName,
			&item.ClientEmail,
		); err != nil {
			return nil, 0, err
		}
		budgets = append(budgets, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return budgets, total, nil
}

// Update применяет частичное изменение бюджета.
func (r *MonthlyBudgetRepository) Update(ctx context.Context, id uuid.UUID, update BudgetUpdate) (models.MonthlyBudget, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE monthly_budgets
		 SET monthly_salary = COALESCE($2, monthly_salary),
		     budget_amount = COALESCE($3, budget_amount),
		     is_percentage = COALESCE($4, is_percentage),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+budgetColumns,
		id, update.MonthlySalary, update.BudgetAmount, update.IsPercentage,
	)

	budget, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget, ErrNotFound
		}
		return budget, mapWriteError(err)
	}
	return budget, nil
}

// Delete удаляет бюджет.
func (r *MonthlyBudgetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM monthly_budgets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CopyFromPrevious создает бюджет месяца копией бюджета предыдущего месяца.
// Возвращает ErrNotFound, если копировать нечего, и ErrConflict, если бюджет уже есть.
func (r *MonthlyBudgetRepository) CopyFromPrevious(ctx context.Context, clientID uuid.UUID, year, month, prevYear, prevMonth int) (models.MonthlyBudget, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO monthly_budgets (client_id, year, month, monthly_salary, budget_amount, is_percentage)
		 SELECT client_id, $2, $3, monthly_salary, budget_amount, is_percentage
		 FROM monthly_budgets
		 WHERE client_id = $1 AND year = $4 AND month = $5
		 ON CONFLICT (client_id, year, month) DO NOTHING
		 RETURNING `+budgetColumns,
		clientID, year, month, prevYear, prevMonth,
	)

	budget, err := scanBudget(row)
	if err == nil {
		return budget, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return budget, err
	}

	if _, err := r.GetForMonth(ctx, clientID, year, month); err == nil {
		return budget, ErrConflict
	}
	return budget, ErrNotFound
}

func scanBudget(row pgx.Row) (models.MonthlyBudget, error) {
	var budget models.MonthlyBudget
	err := row.Scan(
		&budget.ID,
		&budget.ClientID,
		&budget.Year,
		&budget.Month,
		&budget.MonthlySalary,
		&budget.BudgetAmount,
		&budget.IsPercentage,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	return budget, err
}

func scanBudgetOrNotFound(row pgx.Row) (models.MonthlyBudget, error) {
	budget, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget, ErrNotFound
		}
		return budget, err
	}
	return budget, nil
}
