// Package scheduler запускает фоновые задачи по cron-расписанию.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const rolloverTimeout = 5 * time.Minute

type ClientLister interface {
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type BudgetCopier interface {
	CopyFromPrevious(ctx context.Context, clientID uuid.UUID, year, month, prevYear, prevMonth int) (models.MonthlyBudget, error)
}

// RolloverResult считает итоги одного прогона.
type RolloverResult struct {
	Created int
	Skipped int
	Failed  int
}

// Rollover переносит бюджет предыдущего месяца на текущий для активных клиентов.
type Rollover struct {
	clients  ClientLister
	budgets  BudgetCopier
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func NewRollover(clients ClientLister, budgets BudgetCopier, location *time.Location, logger *slog.Logger) *Rollover {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rollover{
		clients:  clients,
		budgets:  budgets,
		location: location,
		logger:   logger.With(slog.String("component", "rollover")),
		now:      time.Now,
	}
}

// Run создает бюджеты текущего месяца. Клиент без бюджета в прошлом месяце или
// с уже созданным бюджетом пропускается; ошибка по одному клиенту не
// останавливает остальных.
func (r *Rollover) Run(ctx context.Context) (RolloverResult, error) {
	var result RolloverResult

	ids, err := r.clients.ListActiveIDs(ctx)
	if err != nil {
		return result, err
	}

	today := budget.Today(r.now(), r.location)
	year, month := today.Year(), int(today.Month())
	prevYear, prevMonth := budget.PreviousMonth(year, month)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := r.budgets.CopyFromPrevious(ctx, id, year, month, prevYear, prevMonth)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrConflict):
			result.Skipped++
		default:
			result.Failed++
			r.logger.ErrorContext(ctx, "budget rollover failed",
				slog.String("client_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "budget rollover completed",
		slog.Int("year", year),
		slog.Int("month", month),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// Job оборачивает прогон переноса в задачу планировщика.
func (r *Rollover) Job(schedule string) Job {
	return Job{
		Name:     "budget_rollover",
		Schedule: schedule,
		Timeout:  rolloverTimeout,
		Run: func(ctx context.Context) error {
			_, err := r.Run(ctx)
			return err
		},
	}
}
