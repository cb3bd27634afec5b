// Package notifications доставляет события бюджета подписчикам SSE и внешним
// приемникам вроде брокера сообщений.
package notifications

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected          = "connected"
	EventTransactionCreated = "transaction_created"
	EventBudgetUpdated      = "budget_updated"
	EventInsightsReady      = "insights_ready"
)

type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Publisher доставляет событие субъекту (клиенту или сотруднику).
type Publisher interface {
	Publish(subjectID uuid.UUID, event Event)
}

func stamp(event Event, now func() time.Time) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
	return event
}
