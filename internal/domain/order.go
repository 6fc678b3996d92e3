package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// statusRank orders statuses along the allowed lifecycle. A transition may
// only move to a strictly higher rank, and never out of a terminal status.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusPaid:      1,
	OrderStatusCompleted: 2,
	OrderStatusFailed:    2,
	OrderStatusCancelled: 2,
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	fromRank, fromOK := statusRank[from]
	toRank, toOK := statusRank[to]
	if !fromOK || !toOK || from.Terminal() {
		return false
	}
	return toRank > fromRank
}

type Order struct {
	ID               string      `json:"id"`
	BotToken         string      `json:"bot_token"`
	TelegramUserID   int64       `json:"telegram_user_id"`
	TelegramUsername string      `json:"telegram_username"`
	ServiceID        string      `json:"service_id"`
	ServiceName      string      `json:"service_name"`
	Quantity         int         `json:"quantity"`
	Amount           int64       `json:"amount"`
	Currency         string      `json:"currency"`
	Status           OrderStatus `json:"status"`
	GatewayTxID      string      `json:"gateway_tx_id"`
	QRISURL          string      `json:"qris_url"`
	TargetLink       string      `json:"target_link"`
	ResultLink       string      `json:"result_link"`
	PaymentExpiredAt time.Time   `json:"payment_expired_at"`
	DeliveredAt      *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
