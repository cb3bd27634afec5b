package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/daily-budget/backend/internal/models"
)

const userColumns = `id, name, email, password_hash, role, is_active, last_login, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

// UserFilter ограничивает список сотрудников; Search ищет по имени и email.
type UserFilter struct {
	Search string
	Role   *models.UserRole
	Active *bool
}

// UserUpdate описывает частичное изменение сотрудника; nil-поля не меняются.
type UserUpdate struct {
	Name     *string
	Email    *string
	Role     *models.UserRole
	IsActive *bool
}

// NewUserRepository создает репозиторий сотрудников (администраторов и менеджеров).
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create создает сотрудника в базе.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string, role models.UserRole) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		name, email, passwordHash, role,
	)

	user, err := scanUser(row)
	if err != nil {
		return user, mapWriteError(err)
	}
	return user, nil
}

// EnsureAdmin создает администратора с email, если его еще нет.
// Возвращает true, если запись была создана.
func (r *UserRepository) EnsureAdmin(ctx context.Context, name, email, passwordHash string) (bool, error) {
	cmd, err := r.db.Exec(ctx,
		`INSERT INTO users (name, email, password_hash, role)
		 VALUES ($1, $2, $3, 'admin')
		 ON CONFLICT (email) DO NOTHING`,
		name, email, passwordHash,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// GetByEmail возвращает сотрудника по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE lower(email) = lower($1)`,
		email,
	)
	return scanUserOrNotFound(row)
}

// GetByID возвращает сотрудника по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE id = $1`,
		id,
	)
	return scanUserOrNotFound(row)
}

// TouchLastLogin фиксирует время последнего входа.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// UpdateProfile обновляет имя и email сотрудника.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users
		 SET name = $2, email = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, name, email,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrNotFound
		}
		return user, mapWriteError(err)
	}
	return user, nil
}

// List возвращает страницу сотрудников и их общее число.
func (r *UserRepository) List(ctx context.Context, filter UserFilter, page Page) ([]models.User, int, error) {
	var where whereBuilder
	if filter.Search != "" {
		where.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	if filter.Role != nil {
		where.add("role = $%d", *filter.Role)
	}
	if filter.Active != nil {
		where.add("is_active = $%d", *filter.Active)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where.String() + ` ORDER BY created_at DESC` + where.limitOffset(page)
	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update применяет частичное изменение сотрудника.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, update UserUpdate) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name),
		     email = COALESCE($3, email),
		     role = COALESCE($4, role),
		     is_active = COALESCE($5, is_active),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, update.Name, update.Email, update.Role, update.IsActive,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrNotFound
		}
		return user, mapWriteError(err)
	}
	return user, nil
}

// UpdatePassword заменяет хэш пароля.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
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

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func scanUserOrNotFound(row pgx.Row) (models.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrNotFound
		}
		return user, err
	}
	return user, nil
}
