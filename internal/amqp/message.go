package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/daily-budget/backend/internal/notifications"
)

// LedgerMessage описывает событие учета, отправляемое в брокер.
type LedgerMessage struct {
	Type       string          `json:"type"`
	SubjectID  uuid.UUID       `json:"subjectId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewLedgerMessage упаковывает событие уведомлений в сообщение брокера.
func NewLedgerMessage(subjectID uuid.UUID, event notifications.Event) (LedgerMessage, error) {
	msg := LedgerMessage{
		Type:       event.Type,
		SubjectID:  subjectID,
		OccurredAt: event.Timestamp,
	}

	if event.Data != nil {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return msg, err
		}
		msg.Data = data
	}

	return msg, nil
}

func (m LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerMessageFromJSON(body []byte) (LedgerMessage, error) {
	var msg LedgerMessage
	err := json.Unmarshal(body, &msg)
	return msg, err
}
