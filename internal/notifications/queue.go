package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("event queue is full")
	ErrQueueClosed = errors.New("event queue is closed")
)

const defaultSendTimeout = 5 * time.Second

type queuedEvent struct {
	subjectID uuid.UUID
	event     Event
}

// QueuedSink доставляет события во внутренний Sink из отдельной горутины.
// Send только ставит событие в очередь фиксированного размера; при переполнении
// событие отбрасывается и учитывается в Dropped.
type QueuedSink struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	events  chan queuedEvent
	done    chan struct{}
	dropped atomic.Int64
}

func NewQueuedSink(sink Sink, size int, logger *slog.Logger) *QueuedSink {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &QueuedSink{
		sink:    sink,
		logger:  logger.With(slog.String("component", "notifications")),
		timeout: defaultSendTimeout,
		events:  make(chan queuedEvent, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueuedSink) Send(_ context.Context, subjectID uuid.UUID, event Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- queuedEvent{subjectID: subjectID, event: event}:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped возвращает число событий, отброшенных из-за переполнения очереди.
func (q *QueuedSink) Dropped() int64 {
	return q.dropped.Load()
}

// Close перестает принимать события и ждет, пока очередь будет доставлена,
// не дольше ctx.
func (q *QueuedSink) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *QueuedSink) run() {
	defer close(q.done)

	for item := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.sink.Send(ctx, item.subjectID, item.event)
		cancel()
		if err != nil {
			q.logger.Warn("queued event delivery failed",
				slog.String("event", item.event.Type),
				slog.String("subject_id", item.subjectID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
