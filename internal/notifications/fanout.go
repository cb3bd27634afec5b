package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink получает копию каждого события, например брокер сообщений.
type Sink interface {
	Send(ctx context.Context, subjectID uuid.UUID, event Event) error
}

// Fanout публикует событие в SSE-хаб и во все внешние Sink.
// Ошибки Sink логируются и не влияют на доставку в хаб.
type Fanout struct {
	hub     *Hub
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration
}

func NewFanout(hub *Hub, logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		hub:     hub,
		sinks:   sinks,
		logger:  logger.With(slog.String("component", "notifications")),
		timeout: 5 * time.Second,
	}
}

func (f *Fanout) Publish(subjectID uuid.UUID, event Event) {
	event = stamp(event, time.Now)

	if f.hub != nil {
		f.hub.Publish(subjectID, event)
	}

	for _, sink := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := sink.Send(ctx, subjectID, event); err != nil {
			f.logger.Warn("event sink failed",
				slog.String("event", event.Type),
				slog.String("subject_id", subjectID.String()),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
