package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/daily-budget/backend/internal/models"
)

type SettingsRepository struct {
	db *pgxpool.Pool
}

// NewSettingsRepository создает репозиторий системных настроек.
func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает настройки; для пустой базы отдает значения по умолчанию.
func (r *SettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()

	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings, nil
		}
		return settings, err
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Save сохраняет настройки целиком.
func (r *SettingsRepository) Save(ctx context.Context, settings models.Settings) (models.Settings, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO settings (id, data, updated_at)
		 VALUES (1, $1::jsonb, NOW())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		string(raw),
	)
	if err != nil {
		return settings, err
	}
	return settings, nil
}
