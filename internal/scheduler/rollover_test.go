package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

type staticClients struct {
	ids []uuid.UUID
	err error
}

func (s staticClients) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type copyCall struct {
	clientID                         uuid.UUID
	year, month, prevYear, prevMonth int
}

type scriptedCopier struct {
	results map[uuid.UUID]error
	calls   []copyCall
}

func (s *scriptedCopier) CopyFromPrevious(_ context.Context, clientID uuid.UUID, year, month, prevYear, prevMonth int) (models.MonthlyBudget, error) {
	s.calls = append(s.calls, copyCall{clientID, year, month, prevYear, prevMonth})
	if err := s.results[clientID]; err != nil {
		return models.MonthlyBudget{}, err
	}
	return models.MonthlyBudget{ID: uuid.New(), ClientID: clientID, Year: year, Month: month}, nil
}

func TestRolloverRun(t *testing.T) {
	created, missing, existing, broken := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	copier := &scriptedCopier{results: map[uuid.UUID]error{
		missing:  repository.ErrNotFound,
		existing: repository.ErrConflict,
		broken:   errors.New("connection reset"),
	}}

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	r := NewRollover(staticClients{ids: []uuid.UUID{created, missing, existing, broken}}, copier, loc, nil)
	// 02:00 UTC 1 января в Сан-Паулу еще 31 декабря.
	r.now = func() time.Time { return time.Date(2026, time.January, 1, 2, 0, 0, 0, time.UTC) }

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RolloverResult{Created: 1, Skipped: 2, Failed: 1}, result)

	require.Len(t, copier.calls, 4)
	assert.Equal(t, copyCall{created, 2025, 12, 2025, 11}, copier.calls[0])
}

func TestRolloverYearBoundary(t *testing.T) {
	id := uuid.New()
	copier := &scriptedCopier{}
	r := NewRollover(staticClients{ids: []uuid.UUID{id}}, copier, time.UTC, nil)
	r.now = func() time.Time { return time.Date(2026, time.January, 1, 0, 5, 0, 0, time.UTC) }

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []copyCall{{id, 2026, 1, 2025, 12}}, copier.calls)
}

func TestRolloverListError(t *testing.T) {
	r := NewRollover(staticClients{err: errors.New("db down")}, &scriptedCopier{}, time.UTC, nil)
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewRollover(staticClients{}, &scriptedCopier{}, time.UTC, nil)
	_, err := Start(time.UTC, nil, r.Job("every day"))
	assert.Error(t, err)

	_, err = Start(time.UTC, nil, Job{Name: "noop", Schedule: "@daily"})
	assert.Error(t, err)

	c, err := Start(time.UTC, nil, r.Job("5 0 1 * *"), Job{Name: "disabled"})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}

type fakePurger struct {
	before  time.Time
	removed int64
	err     error
}

func (f *fakePurger) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.removed, f.err
}

func TestTokenPurgeCutoff(t *testing.T) {
	purger := &fakePurger{removed: 3}
	p := NewTokenPurge(purger, 24*time.Hour, nil)
	p.now = func() time.Time { return time.Date(2025, time.April, 3, 12, 0, 0, 0, time.UTC) }

	removed, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	assert.Equal(t, time.Date(2025, time.April, 2, 12, 0, 0, 0, time.UTC), purger.before)

	purger.err = errors.New("db down")
	assert.Error(t, p.Job("@daily").Run(context.Background()))
}

func TestRunnerRespectsTimeout(t *testing.T) {
	done := make(chan time.Time, 1)
	job := Job{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			deadline, _ := ctx.Deadline()
			done <- deadline
			<-ctx.Done()
			return ctx.Err()
		},
	}

	started := time.Now()
	runner(job, slog.New(slog.NewTextHandler(io.Discard, nil)))()
	deadline := <-done
	assert.WithinDuration(t, started.Add(10*time.Millisecond), deadline, time.Second)
}
