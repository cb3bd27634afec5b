package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type TokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenPurge удаляет refresh-токены, истекшие больше retention назад.
type TokenPurge struct {
	tokens    TokenPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewTokenPurge(tokens TokenPurger, retention time.Duration, logger *slog.Logger) *TokenPurge {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenPurge{
		tokens:    tokens,
		retention: retention,
		logger:    logger.With(slog.String("component", "token_purge")),
		now:       time.Now,
	}
}

func (p *TokenPurge) Run(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	removed, err := p.tokens.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.InfoContext(ctx, "expired refresh tokens purged",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

func (p *TokenPurge) Job(schedule string) Job {
	return Job{
		Name:     "refresh_token_purge",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := p.Run(ctx)
			return err
		},
	}
}
