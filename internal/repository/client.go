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

const clientColumns = `id, name, email, password_hash, phone, address, cpf, birthday, salary,
	city, state, zip_code, complement, marital_status, status, is_active, manager_id,
	last_login, created_at, updated_at`

type ClientRepository struct {
	db *pgxpool.Pool
}

// ClientInput содержит редактируемые поля клиента.
type ClientInput struct {
	Name          string
	Email         string
	Phone         *string
	Address       *string
	CPF           string
	Birthday      *time.Time
	Salary        *decimal.Decimal
	City          *string
	State         *string
	ZipCode       *string
	Complement    *string
	MaritalStatus *models.MaritalStatus
	Status        models.ClientStatus
	IsActive      bool
	ManagerID     *uuid.UUID
}

type ClientFilter struct {
	Search string
	Status *models.ClientStatus
}

type ClientStats struct {
	Total    int
	Active   int
	Inactive int
}

// NewClientRepository создает репозиторий клиентов.
func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create создает клиента. passwordHash уже должен быть хэширован.
func (r *ClientRepository) Create(ctx context.Context, input ClientInput, passwordHash string) (models.Client, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO clients
		 (name, email, password_hash, phone, address, cpf, birthday, salary, city, state,
		  zip_code, complement, marital_status, status, is_active, manager_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING `+clientColumns,
		input.Name, input.Email, passwordHash, input.Phone, input.Address, input.CPF,
		input.Birthday, input.Salary, input.City, input.State, input.ZipCode, input.Complement,
		input.MaritalStatus, input.Status, input.IsActive, input.ManagerID,
	)

	client, err := scanClient(row)
	if err != nil {
		return client, mapWriteError(err)
	}
	return client, nil
}

// Update перезаписывает редактируемые поля клиента.
func (r *ClientRepository) Update(ctx context.Context, id uuid.UUID, input ClientInput) (models.Client, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE clients
		 SET name = $2, email = $3, phone = $4, address = $5, cpf = $6, birthday = $7,
		     salary = $8, city = $9, state = $10, zip_code = $11, complement = $12,
		     marital_status = $13, status = $14, is_active = $15, manager_id = $16,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+clientColumns,
		id, input.Name, input.Email, input.Phone, input.Address, input.CPF, input.Birthday,
		input.Salary, input.City, input.State, input.ZipCode, input.Complement,
		input.MaritalStatus, input.Status, input.IsActive, input.ManagerID,
	)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client, ErrNotFound
		}
		return client, mapWriteError(err)
	}
	return client, nil
}

// UpdateProfile обновляет поля, которые клиент может менять сам.
func (r *ClientRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, phone, address *string) (models.Client, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE clients
		 SET name = $2, email = $3, phone = $4, address = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+clientColumns,
		id, name, email, phone, address,
	)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client, ErrNotFound
		}
		return client, mapWriteError(err)
	}
	return client, nil
}

// UpdatePassword заменяет хэш пароля клиента.
func (r *ClientRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE clients SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin фиксирует время последнего входа клиента.
func (r *ClientRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE clients SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// GetByID возвращает клиента по идентификатору.
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClientOrNotFound(row)
}

// GetByEmail возвращает клиента по email без учета регистра.
func (r *ClientRepository) GetByEmail(ctx context.Context, email string) (models.Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE lower(email) = lower($1)`, email)
	return scanClientOrNotFound(row)
}

// List возвращает страницу клиентов и общее число записей по фильтру.
func (r *ClientRepository) List(ctx context.Context, filter ClientFilter, page Page) ([]models.Client, int, error) {
	var where whereBuilder
	if filter.Search != "" {
		where.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR cpf ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	if filter.Status != nil {
		where.add("status = $%d", *filter.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clientColumns + ` FROM clients` + where.String() + ` ORDER BY created_at DESC`
	query += where.limitOffset(page)

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients := make([]models.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return clients, total, nil
}

// ListActiveIDs возвращает идентификаторы активных клиентов.
func (r *ClientRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM clients WHERE is_active AND status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Stats возвращает количество клиентов по активности.
func (r *ClientRepository) Stats(ctx context.Context) (ClientStats, error) {
	var stats ClientStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active AND status = 'active'),
		        COUNT(*) FILTER (WHERE NOT is_active OR status <> 'active')
		 FROM clients`,
	).Scan(&stats.Total, &stats.Active, &stats.Inactive)
	return stats, err
}

// Delete удаляет клиента вместе с его транзакциями и бюджетами (ON DELETE CASCADE).
func (r *ClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (models.Client, error) {
	var client models.Client
	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.PasswordHash,
		&client.Phone,
		&client.Address,
		&client.CPF,
		&client.Birthday,
		&client.Salary,
		&client.City,
		&client.State,
		&client.ZipCode,
		&client.Complement,
		&client.MaritalStatus,
		&client.Status,
		&client.IsActive,
		&client.ManagerID,
		&client.LastLogin,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	return client, err
}

func scanClientOrNotFound(row pgx.Row) (models.Client, error) {
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client, ErrNotFound
		}
		return client, err
	}
	return client, nil
}
