package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestHubPublishSubscribe проверяет доставку событий подписчику.
func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()
	clientID := uuid.New()

	ch, unsubscribe := hub.Subscribe(clientID)
	defer unsubscribe()

	hub.Publish(clientID, Event{Type: EventTransactionCreated})

	select {
	case event := <-ch:
		if event.Type != EventTransactionCreated {
			t.Fatalf("expected event type %s, got %s", EventTransactionCreated, event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event to be delivered")
	}
}

// TestHubUnsubscribe проверяет закрытие канала после отписки.
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	clientID := uuid.New()

	ch, unsubscribe := hub.Subscribe(clientID)
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	if hub.Subscribers(clientID) != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Subscribers(clientID))
	}
}

// TestHubIsolatesSubjects проверяет, что событие не уходит чужому субъекту.
func TestHubIsolatesSubjects(t *testing.T) {
	hub := NewHub()
	owner, other := uuid.New(), uuid.New()

	ch, unsubscribe := hub.Subscribe(other)
	defer unsubscribe()

	hub.Publish(owner, Event{Type: EventBudgetUpdated})

	select {
	case event := <-ch:
		t.Fatalf("unexpected event %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	clientID := uuid.New()

	ch, unsubscribe := hub.Subscribe(clientID)
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish(clientID, Event{Type: EventBudgetUpdated})
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBuffer, len(ch))
	}
	if hub.Dropped() != 3 {
		t.Fatalf("expected 3 dropped events, got %d", hub.Dropped())
	}
}

func TestHubMultipleSubscriptions(t *testing.T) {
	hub := NewHub()
	clientID := uuid.New()

	first, unsubscribeFirst := hub.Subscribe(clientID)
	second, unsubscribeSecond := hub.Subscribe(clientID)
	defer unsubscribeSecond()

	unsubscribeFirst()
	if hub.Subscribers(clientID) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers(clientID))
	}
	if _, ok := <-first; ok {
		t.Fatal("expected first channel to be closed")
	}

	hub.Publish(clientID, Event{Type: EventInsightsReady})
	if event := <-second; event.Type != EventInsightsReady {
		t.Fatalf("unexpected event %s", event.Type)
	}
}

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Send(_ context.Context, _ uuid.UUID, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

// TestFanoutDeliversToHubAndSinks проверяет, что ошибка одного Sink не мешает остальным.
func TestFanoutDeliversToHubAndSinks(t *testing.T) {
	hub := NewHub()
	clientID := uuid.New()
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}

	ch, unsubscribe := hub.Subscribe(clientID)
	defer unsubscribe()

	fanout := NewFanout(hub, nil, failing, healthy)
	fanout.Publish(clientID, Event{Type: EventBudgetUpdated})

	select {
	case event := <-ch:
		if event.Type != EventBudgetUpdated {
			t.Fatalf("expected %s, got %s", EventBudgetUpdated, event.Type)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event in hub")
	}

	if len(failing.events) != 1 || len(healthy.events) != 1 {
		t.Fatalf("expected both sinks to receive event, got %d and %d", len(failing.events), len(healthy.events))
	}
	if healthy.events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp on sink event")
	}
}
