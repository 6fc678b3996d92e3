package domain

import "time"

// Order lifecycle events published for downstream consumers (the sales
// notifier worker, dashboards, reporting). The bot never consumes its
// own events.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCompleted = "order.completed"
)

type OrderEvent struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	BotToken  string      `json:"bot_token"`
	ServiceID string      `json:"service_id"`
	Quantity  int         `json:"quantity"`
	Amount    int64       `json:"amount"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}
