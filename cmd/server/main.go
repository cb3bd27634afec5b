package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/amqp"
	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/config"
	"example.com/daily-budget/backend/internal/database"
	"example.com/daily-budget/backend/internal/notifications"
	"example.com/daily-budget/backend/internal/repository"
	"example.com/daily-budget/backend/internal/scheduler"
	"example.com/daily-budget/backend/internal/server"
)

const (
	shutdownTimeout = 10 * time.Second
	eventQueueSize  = 256
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Суммы в JSON отдаются числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			logger.Warn("sentry init failed", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	db, err := database.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := bootstrapAdmin(context.Background(), cfg.Admin, db, logger); err != nil {
		logger.Error("failed to bootstrap admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var (
		sinks  []notifications.Sink
		queues []*notifications.QueuedSink
	)
	if cfg.Events.AMQPURL != "" {
		broker, err := amqp.NewClient(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Queue, logger)
		if err != nil {
			logger.Warn("amqp disabled", slog.String("error", err.Error()))
		} else {
			defer broker.Close()
			queue := notifications.NewQueuedSink(broker, eventQueueSize, logger)
			queues = append(queues, queue)
			sinks = append(sinks, queue)
		}
	}

	var jobs []scheduler.Job
	if cfg.Budget.RolloverEnabled {
		rollover := scheduler.NewRollover(
			repository.NewClientRepository(db),
			repository.NewMonthlyBudgetRepository(db),
			cfg.Budget.Location,
			logger,
		)
		jobs = append(jobs, rollover.Job(cfg.Budget.RolloverSchedule))
	}
	purge := scheduler.NewTokenPurge(repository.NewRefreshTokenRepository(db), cfg.Auth.RefreshTokenTTL, logger)
	jobs = append(jobs, purge.Job(cfg.Auth.TokenPurgeSchedule))

	cronJobs, err := scheduler.Start(cfg.Budget.Location, logger, jobs...)
	if err != nil {
		logger.Error("failed to start scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cronJobs.Stop()

	e, err := server.New(cfg, logger, db, sinks...)
	if err != nil {
		logger.Error("failed to build server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	httpServer := server.NewHTTPServer(cfg.Server, e)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", httpServer.Addr))
		serveErr <- e.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	for _, queue := range queues {
		if err := queue.Close(shutdownCtx); err != nil {
			logger.Warn("event queue not drained",
				slog.String("error", err.Error()),
				slog.Int64("dropped", queue.Dropped()),
			)
		}
	}
}

// bootstrapAdmin создает первого администратора из ADMIN_BOOTSTRAP_*.
func bootstrapAdmin(ctx context.Context, cfg config.AdminConfig, db *pgxpool.Pool, logger *slog.Logger) error {
	if cfg.BootstrapEmail == "" {
		return nil
	}

	hash, err := auth.HashPassword(cfg.BootstrapPassword)
	if err != nil {
		return err
	}

	created, err := repository.NewUserRepository(db).EnsureAdmin(ctx, cfg.BootstrapName, cfg.BootstrapEmail, hash)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap admin created", slog.String("email", cfg.BootstrapEmail))
	}
	return nil
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
