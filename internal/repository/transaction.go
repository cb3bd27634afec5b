package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/models"
)

const transactionSelect = `SELECT t.id, t.client_id, cl.name, t.category_id, c.name, c.description,
	t.description, t.amount, t.type, t.date, t.remaining_balance_after_transaction,
	t.created_at, t.updated_at
	FROM daily_transactions t
	JOIN clients cl ON cl.id = t.client_id
	LEFT JOIN categories c ON c.id = t.category_id`

type TransactionRepository struct {
	db *pgxpool.Pool
}

type TransactionInput struct {
	ClientID         uuid.UUID
	CategoryID       *uuid.UUID
	Description      string
	Amount           decimal.Decimal
	Type             models.TransactionType
	Date             time.Time
	RemainingBalance *decimal.Decimal
}

// TransactionFilter ограничивает выборку; From и To включительно.
type TransactionFilter struct {
	ClientID   *uuid.UUID
	CategoryID *uuid.UUID
	Type       *models.TransactionType
	From       *time.Time
	To         *time.Time
}

type TransactionTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Count   int
}

type MonthlyBalance struct {
	Year    int
	Month   int
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// NewTransactionRepository создает репозиторий дневных транзакций.
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create сохраняет транзакцию и возвращает ее вместе с именем клиента и категорией.
func (r *TransactionRepository) Create(ctx context.Context, input TransactionInput) (models.DailyTransaction, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO daily_transactions
		 (client_id, category_id, description, amount, type, date, remaining_balance_after_transaction)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		input.ClientID, input.CategoryID, input.Description, input.Amount, input.Type, input.Date, input.RemainingBalance,
	).Scan(&id)
	if err != nil {
		return models.DailyTransaction{}, mapWriteError(err)
	}

	return r.GetByID(ctx, id)
}

// GetByID возвращает транзакцию по идентификатору.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (models.DailyTransaction, error) {
	row := r.db.QueryRow(ctx, transactionSelect+` WHERE t.id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx, ErrNotFound
		}
		return tx, err
	}
	return tx, nil
}

// List возвращает страницу транзакций (новые сверху) и общее количество по фильтру.
func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter, page Page) ([]models.DailyTransaction, int, error) {
	where := buildTransactionWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM daily_transactions t`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := transactionSelect + where.String() + ` ORDER BY t.date DESC, t.created_at DESC` + where.limitOffset(page)
	transactions, err := r.query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// ListAll возвращает все транзакции по фильтру в хронологическом порядке.
func (r *TransactionRepository) ListAll(ctx context.Context, filter TransactionFilter) ([]models.DailyTransaction, error) {
	where := buildTransactionWhere(filter)
	return r.query(ctx, transactionSelect+where.String()+` ORDER BY t.date, t.created_at`, where.args...)
}

// ListMonth возвращает транзакции клиента за календарный месяц.
func (r *TransactionRepository) ListMonth(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]models.DailyTransaction, error) {
	return r.ListAll(ctx, TransactionFilter{ClientID: &clientID, From: &from, To: &to})
}

// Recent возвращает последние транзакции; clientID nil означает всех клиентов.
func (r *TransactionRepository) Recent(ctx context.Context, clientID *uuid.UUID, limit int) ([]models.DailyTransaction, error) {
	where := buildTransactionWhere(TransactionFilter{ClientID: clientID})
	where.args = append(where.args, limit)
	query := transactionSelect + where.String() + ` ORDER BY t.created_at DESC LIMIT $` + itoa(len(where.args))
	return r.query(ctx, query, where.args...)
}

// Totals суммирует доходы и расходы по фильтру.
func (r *TransactionRepository) Totals(ctx context.Context, filter TransactionFilter) (TransactionTotals, error) {
	where := buildTransactionWhere(filter)

	var totals TransactionTotals
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'income'), 0),
		        COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'expense'), 0),
		        COUNT(*)
		 FROM daily_transactions t`+where.String(),
		where.args...,
	).Scan(&totals.Income, &totals.Expense, &totals.Count)
	return totals, err
}

// MonthlyBalances возвращает доходы и расходы клиента по месяцам начиная с since.
func (r *TransactionRepository) MonthlyBalances(ctx context.Context, clientID uuid.UUID, since time.Time) ([]MonthlyBalance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT EXTRACT(YEAR FROM date)::int AS year,
		        EXTRACT(MONTH FROM date)::int AS month,
		        COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		 FROM daily_transactions
		 WHERE client_id = $1 AND date >= $2
		 GROUP BY year, month
		 ORDER BY year, month`,
		clientID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]MonthlyBalance, 0)
	for rows.Next() {
		var row MonthlyBalance
		if err := rows.Scan(&row.Year, &row.Month, &row.Income, &row.Expense); err != nil {
			return nil, err
		}
		balances = append(balances, row)
	}

	return balances, rows.Err()
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.DailyTransaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.DailyTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

func buildTransactionWhere(filter TransactionFilter) whereBuilder {
	var where whereBuilder
	if filter.ClientID != nil {
		where.add("t.client_id = $%d", *filter.ClientID)
	}
	if filter.CategoryID != nil {
		where.add("t.category_id = $%d", *filter.CategoryID)
	}
	if filter.Type != nil {
		where.add("t.type = $%d", *filter.Type)
	}
	if filter.From != nil {
		where.add("t.date >= $%d", *filter.From)
	}
	if filter.To != nil {
		where.add("t.date <= $%d", *filter.To)
	}
	return where
}

func scanTransaction(row pgx.Row) (models.DailyTransaction, error) {
	var tx models.DailyTransaction
	var categoryName *string
	var categoryDescription *string

	err := row.Scan(
		&tx.ID,
		&tx.ClientID,
		&tx.ClientName,
		&tx.CategoryID,
		&categoryName,
		&categoryDescription,
		&tx.Description,
		&tx.Amount,
		&tx.Type,
		&tx.Date,
		&tx.RemainingBalanceAfterTransaction,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return tx, err
	}

	if tx.CategoryID != nil && categoryName != nil {
		tx.Category = &models.Category{ID: *tx.CategoryID, Name: *categoryName, Description: categoryDescription}
	}
	return tx, nil
}
