package notifications

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

type subscription struct {
	events chan Event
	closed bool
}

// Hub раздает события открытым SSE-подпискам в памяти процесса.
// Подписчик с заполненным буфером теряет событие, издатель не блокируется.
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID][]*subscription
	dropped atomic.Int64
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID][]*subscription),
		now:  time.Now,
	}
}

// Subscribe возвращает канал событий субъекта и функцию отписки, которая
// закрывает канал. Повторный вызов отписки ничего не делает.
func (h *Hub) Subscribe(subjectID uuid.UUID) (<-chan Event, func()) {
	sub := &subscription{events: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[subjectID] = append(h.subs[subjectID], sub)
	h.mu.Unlock()

	return sub.events, func() { h.unsubscribe(subjectID, sub) }
}

func (h *Hub) unsubscribe(subjectID uuid.UUID, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.events)

	list := h.subs[subjectID]
	for i, s := range list {
		if s == sub {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, subjectID)
		return
	}
	h.subs[subjectID] = list
}

func (h *Hub) Publish(subjectID uuid.UUID, event Event) {
	event = stamp(event, h.now)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[subjectID] {
		select {
		case sub.events <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers возвращает число открытых подписок субъекта.
func (h *Hub) Subscribers(subjectID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[subjectID])
}

// Dropped возвращает число событий, потерянных из-за переполненных буферов.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
