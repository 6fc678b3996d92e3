package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smmstore/commerce-bot/internal/domain"
	"github.com/smmstore/commerce-bot/internal/inventory"
	"github.com/smmstore/commerce-bot/internal/telegram"
	"github.com/smmstore/commerce-bot/internal/telemetry"
)

// ErrInventoryExhausted is the hard operational failure: the order is paid
// but there is nothing to deliver. It must surface to operators, never be
// swallowed.
var ErrInventoryExhausted = errors.New("inventory exhausted for paid order")

// Fulfiller allocates exactly one inventory unit to a paid order and
// delivers it. Allocation and delivery are deliberately separate steps:
// the claim commits first, delivery is acknowledged with its own stamp so
// a failed send can be retried without reallocating.
type Fulfiller struct {
	botToken  string
	orders    OrderStore
	units     UnitStore
	messenger telegram.Messenger
	publisher EventPublisher
	metrics   *telemetry.BotMetrics
	logger    *slog.Logger
}

func NewFulfiller(
	botToken string,
	orderStore OrderStore,
	units UnitStore,
	messenger telegram.Messenger,
	publisher EventPublisher,
	metrics *telemetry.BotMetrics,
	logger *slog.Logger,
) *Fulfiller {
	return &Fulfiller{
		botToken:  botToken,
		orders:    orderStore,
		units:     units,
		messenger: messenger,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Fulfill claims one unit for the order, marks the order completed and
// delivers the credential. The order must already be paid; the caller's
// idempotent pending→paid gate ensures Fulfill runs at most once per order.
func (f *Fulfiller) Fulfill(ctx context.Context, order *domain.Order) error {
	if !domain.CanTransition(order.Status, domain.OrderStatusCompleted) {
		return fmt.Errorf("order %s is %s, not fulfillable", order.ID, order.Status)
	}

	unit, err := f.units.Claim(ctx, order.ID)
	if err != nil {
		if errors.Is(err, inventory.ErrOutOfStock) {
			f.metrics.InventoryExhausted(ctx)
			f.logger.Error("no inventory unit available for paid order",
				"order_id", order.ID, "service_id", order.ServiceID)
			return fmt.Errorf("%w: order %s", ErrInventoryExhausted, order.ID)
		}
		return fmt.Errorf("claim unit for order %s: %w", order.ID, err)
	}

	if err := f.orders.MarkCompleted(ctx, order.ID, unit.Login); err != nil {
		// The unit stays bound to the order id. The delivery reconciler
		// only covers completed orders, so a paid order stranded here
		// needs operator attention; the claim is never re-run.
		return fmt.Errorf("mark order %s completed: %w", order.ID, err)
	}

	order.Status = domain.OrderStatusCompleted
	f.metrics.FulfillmentCompleted(ctx)
	f.publishCompleted(ctx, order)
	f.logger.Info("order fulfilled", "order_id", order.ID, "unit_id", unit.ID)

	if err := f.deliver(ctx, order, unit); err != nil {
		f.logger.Error("delivery failed, will retry via reconciliation",
			"error", err, "order_id", order.ID)
		return nil
	}

	return nil
}

func (f *Fulfiller) deliver(ctx context.Context, order *domain.Order, unit *domain.InventoryUnit) error {
	text := fmt.Sprintf(
		"Your order %s is complete!\n\nLogin: %s\nPassword: %s\n\nThank you for your purchase.",
		order.ID, unit.Login, unit.Secret,
	)
	if err := f.messenger.SendText(ctx, order.TelegramUserID, text, nil); err != nil {
		return fmt.Errorf("send credential for order %s: %w", order.ID, err)
	}

	if err := f.orders.MarkDelivered(ctx, order.ID); err != nil {
		return fmt.Errorf("mark order %s delivered: %w", order.ID, err)
	}

	return nil
}

// RetryUndelivered re-sends credentials for completed orders whose delivery
// was never acknowledged.
func (f *Fulfiller) RetryUndelivered(ctx context.Context) error {
	undelivered, err := f.orders.ListUndelivered(ctx, f.botToken, 50)
	if err != nil {
		return fmt.Errorf("list undelivered orders: %w", err)
	}

	for _, order := range undelivered {
		unit, err := f.units.GetByOrderID(ctx, order.ID)
		if err != nil {
			f.logger.Error("failed to load unit for undelivered order", "error", err, "order_id", order.ID)
			continue
		}
		if unit == nil {
			f.logger.Error("completed order has no allocated unit", "order_id", order.ID)
			continue
		}
		if err := f.deliver(ctx, &order, unit); err != nil {
			f.logger.Error("delivery retry failed", "error", err, "order_id", order.ID)
		}
	}

	return nil
}

// RunReconciler retries undelivered orders on a fixed interval.
func (f *Fulfiller) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.RetryUndelivered(ctx); err != nil {
				f.logger.Error("delivery reconciliation failed", "error", err)
			}
		}
	}
}

func (f *Fulfiller) publishCompleted(ctx context.Context, order *domain.Order) {
	if f.publisher == nil {
		return
	}
	event := domain.OrderEvent{
		Type:      domain.EventOrderCompleted,
		OrderID:   order.ID,
		BotToken:  order.BotToken,
		ServiceID: order.ServiceID,
		Quantity:  order.Quantity,
		Amount:    order.Amount,
		Status:    order.Status,
		Timestamp: time.Now().UTC(),
	}
	if err := f.publisher.Publish(ctx, order.ID, event); err != nil {
		f.logger.Error("failed to publish order completed event", "error", err, "order_id", order.ID)
	}
}
