package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository считает агрегаты для админской панели.
type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

type DailyCount struct {
	Day   time.Time
	Count int
}

type UsageStats struct {
	Users           int
	Clients         int
	ActiveClients   int
	Budgets         int
	Transactions    int
	AIRequests      int
	AISuccess       int
	AIFail          int
	AIRequestsByDay []DailyCount
}

// Stats возвращает счетчики сущностей и число запросов к LLM по дням за
// последние days дней, включая сегодняшний (по UTC).
func (r *UsageRepository) Stats(ctx context.Context, days int) (UsageStats, error) {
	var stats UsageStats
	if days <= 0 {
		return stats, ErrInvalid
	}

	err := r.db.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        (SELECT COUNT(*) FROM clients),
		        (SELECT COUNT(*) FROM clients WHERE is_active AND status = 'active'),
		        (SELECT COUNT(*) FROM monthly_budgets),
		        (SELECT COUNT(*) FROM daily_transactions),
		        COUNT(*),
		        COUNT(*) FILTER (WHERE success),
		        COUNT(*) FILTER (WHERE NOT success)
		 FROM ai_requests`,
	).Scan(
		&stats.Users, &stats.Clients, &stats.ActiveClients, &stats.Budgets, &stats.Transactions,
		&stats.AIRequests, &stats.AISuccess, &stats.AIFail,
	)
	if err != nil {
		return stats, err
	}

	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -days+1)
	rows, err := r.db.Query(ctx,
		`SELECT created_at::date AS day, COUNT(*)
		 FROM ai_requests
		 WHERE created_at >= $1
		 GROUP BY day
		 ORDER BY day DESC`,
		since,
	)
	if err != nil {
		return stats, err
	}

	stats.AIRequestsByDay, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyCount, error) {
		var dc DailyCount
		err := row.Scan(&dc.Day, &dc.Count)
		return dc, err
	})
	return stats, err
}
