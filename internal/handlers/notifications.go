package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/notifications"
)

// sseHeartbeat держит соединение открытым за прокси с таймаутом простоя.
const sseHeartbeat = 25 * time.Second

type NotificationHandler struct {
	Hub       *notifications.Hub
	heartbeat time.Duration
}

func NewNotificationHandler(hub *notifications.Hub) *NotificationHandler {
	return &NotificationHandler{Hub: hub, heartbeat: sseHeartbeat}
}

// Stream отдает события текущего аккаунта как text/event-stream до отключения клиента.
func (h *NotificationHandler) Stream(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	res := c.Response()
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	events, unsubscribe := h.Hub.Subscribe(principal.ID)
	defer unsubscribe()

	hello := notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"subjectId": principal.ID.String(), "type": string(principal.Kind)},
	}
	if err := writeSSE(res, hello); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	done := c.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case event, ok := <-events:
			if !ok || writeSSE(res, event) != nil {
				return nil
			}
		}
	}
}

// writeSSE пишет одно событие в формате "event: ...\ndata: {json}\n\n" и сбрасывает буфер.
func writeSSE(res *echo.Response, event notifications.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func publishTransactionCreated(publisher notifications.Publisher, tx models.DailyTransaction) {
	if publisher == nil {
		return
	}

	publisher.Publish(tx.ClientID, notifications.Event{
		Type: notifications.EventTransactionCreated,
		Data: map[string]interface{}{
			"transactionId": tx.ID.String(),
			"type":          tx.Type,
			"amount":        money(tx.Amount),
			"date":          formatDate(tx.Date),
		},
	})
}

// publishBudgetUpdate сообщает новый остаток дня; remaining nil, если бюджета нет.
func publishBudgetUpdate(publisher notifications.Publisher, b models.MonthlyBudget, remaining *decimal.Decimal) {
	if publisher == nil {
		return
	}

	data := map[string]interface{}{
		"budgetId": b.ID.String(),
		"year":     b.Year,
		"month":    b.Month,
	}
	if remaining != nil {
		data["remainingBalance"] = money(*remaining)
	}

	publisher.Publish(b.ClientID, notifications.Event{Type: notifications.EventBudgetUpdated, Data: data})
}

// publishDailyBalance сообщает остаток дня после новой транзакции.
func publishDailyBalance(publisher notifications.Publisher, clientID uuid.UUID, date time.Time, remaining *decimal.Decimal) {
	if publisher == nil || remaining == nil {
		return
	}

	publisher.Publish(clientID, notifications.Event{
		Type: notifications.EventBudgetUpdated,
		Data: map[string]interface{}{
			"date":             formatDate(date),
			"remainingBalance": money(*remaining),
		},
	})
}
