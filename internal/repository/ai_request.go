package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AIRequestRepository ведет журнал обращений к LLM.
type AIRequestRepository struct {
	db *pgxpool.Pool
}

func NewAIRequestRepository(db *pgxpool.Pool) *AIRequestRepository {
	return &AIRequestRepository{db: db}
}

// AIRequestLog это запись журнала до вставки. Пустые payload сохраняются как NULL.
type AIRequestLog struct {
	ClientID        uuid.UUID
	RequestType     string
	Provider        string
	Model           string
	Prompt          string
	RequestPayload  []byte
	ResponsePayload []byte
	Success         bool
	ErrorMessage    *string
}

type AIRequestFilter struct {
	ClientID    *uuid.UUID
	Success     *bool
	RequestType *string
	// WithPayloads включает prompt и JSON-тела; иначе они возвращаются пустыми.
	WithPayloads bool
}

type AIRequestRecord struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	RequestType     string
	Provider        string
	Model           string
	Prompt          *string
	RequestPayload  []byte
	ResponsePayload []byte
	Success         bool
	ErrorMessage    *string
	CreatedAt       time.Time
}

// Record сохраняет одну запись журнала.
func (r *AIRequestRepository) Record(ctx context.Context, entry AIRequestLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_requests
		 (client_id, request_type, provider, model, prompt, request_payload, response_payload, success, error_message)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')::jsonb, NULLIF($7, '')::jsonb, $8, $9)`,
		entry.ClientID, entry.RequestType, entry.Provider, entry.Model, entry.Prompt,
		string(entry.RequestPayload), string(entry.ResponsePayload),
		entry.Success, entry.ErrorMessage,
	)
	return err
}

// List возвращает страницу журнала (новые первыми) и общее число записей по фильтру.
func (r *AIRequestRepository) List(ctx context.Context, filter AIRequestFilter, page Page) ([]AIRequestRecord, int, error) {
	var where whereBuilder
	if filter.ClientID != nil {
		where.add("client_id = $%d", *filter.ClientID)
	}
	if filter.Success != nil {
		where.add("success = $%d", *filter.Success)
	}
	if filter.RequestType != nil {
		where.add("request_type = $%d", *filter.RequestType)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ai_requests`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	conditions := where.String()
	where.args = append(where.args, filter.WithPayloads)
	payloads := "$" + itoa(len(where.args))

	query := `SELECT id, client_id, request_type, provider, model,
	                 CASE WHEN ` + payloads + ` THEN prompt END,
	                 CASE WHEN ` + payloads + ` THEN request_payload END,
	                 CASE WHEN ` + payloads + ` THEN response_payload END,
	                 success, error_message, created_at
	          FROM ai_requests` + conditions + ` ORDER BY created_at DESC` + where.limitOffset(page)

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AIRequestRecord, error) {
		var rec AIRequestRecord
		err := row.Scan(
			&rec.ID, &rec.ClientID, &rec.RequestType, &rec.Provider, &rec.Model,
			&rec.Prompt, &rec.RequestPayload, &rec.ResponsePayload,
			&rec.Success, &rec.ErrorMessage, &rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
