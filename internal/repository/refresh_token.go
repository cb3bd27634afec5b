package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/daily-budget/backend/internal/models"
)

// execer покрывает и пул, и транзакцию.
type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RefreshTokenRepository хранит хеши refresh-токенов сотрудников и клиентов.
type RefreshTokenRepository struct {
	db *pgxpool.Pool
}

func NewRefreshTokenRepository(db *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	return insertRefreshToken(ctx, r.db, token)
}

func (r *RefreshTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := r.db.QueryRow(ctx,
		`SELECT id, subject_id, subject_kind, token_hash, expires_at, created_at, revoked_at, replaced_by
		 FROM refresh_tokens WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.SubjectID, &t.SubjectKind, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.RevokedAt, &t.ReplacedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// Revoke отзывает активный токен. Уже отозванный или неизвестный дает ErrNotFound.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	return revokeRefreshToken(ctx, r.db, id, nil)
}

// RevokeAllForSubject завершает все сессии аккаунта, например после смены пароля.
func (r *RefreshTokenRepository) RevokeAllForSubject(ctx context.Context, kind string, subjectID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW()
		 WHERE subject_kind = $1 AND subject_id = $2 AND revoked_at IS NULL`,
		kind, subjectID,
	)
	return err
}

// Rotate атомарно выпускает новый токен и отзывает старый со ссылкой на замену.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, next models.RefreshToken) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := insertRefreshToken(ctx, tx, next); err != nil {
			return err
		}
		return revokeRefreshToken(ctx, tx, oldID, &next.ID)
	})
}

// PurgeExpired удаляет токены, истекшие раньше before, и возвращает их число.
func (r *RefreshTokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func insertRefreshToken(ctx context.Context, db execer, t models.RefreshToken) error {
	_, err := db.Exec(ctx,
		`INSERT INTO refresh_tokens (id, subject_id, subject_kind, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.SubjectID, t.SubjectKind, t.TokenHash, t.ExpiresAt,
	)
	return err
}

func revokeRefreshToken(ctx context.Context, db execer, id uuid.UUID, replacedBy *uuid.UUID) error {
	cmd, err := db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2
		 WHERE id = $1 AND revoked_at IS NULL`,
		id, replacedBy,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
