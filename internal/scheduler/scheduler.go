package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = time.Minute

// Job это периодическая задача. Пустой Schedule означает, что задача выключена.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Start регистрирует задачи в одном cron в таймзоне loc и запускает его.
// Остановка через Stop у возвращенного *cron.Cron.
func Start(loc *time.Location, logger *slog.Logger, jobs ...Job) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))

	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, job := range jobs {
		if job.Schedule == "" {
			continue
		}
		if job.Run == nil {
			return nil, errors.New("job " + job.Name + " has no run func")
		}
		if _, err := c.AddFunc(job.Schedule, runner(job, logger)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		logger.Info("job scheduled", slog.String("job", job.Name), slog.String("schedule", job.Schedule))
	}

	c.Start()
	return c, nil
}

func runner(job Job, logger *slog.Logger) func() {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("job failed",
				slog.String("job", job.Name),
				slog.Duration("elapsed", time.Since(started)),
				slog.String("error", err.Error()),
			)
		}
	}
}
