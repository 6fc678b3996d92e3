// Package worker turns order lifecycle events into operator notifications.
// It runs as its own process so a slow or down webhook endpoint never
// backs up the bots.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/smmstore/commerce-bot/internal/domain"
)

type NotificationHandler struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotificationHandler(webhookURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		webhookURL: webhookURL,
		httpClient: client,
		logger:     logger,
	}
}

// Handle processes one event from the order.events topic. Events the
// operators don't care about are acknowledged without a webhook call.
// Kafka redelivers on failure, so a flaky webhook means duplicate
// notifications, never lost ones.
func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	text, ok := h.format(event)
	if !ok {
		return nil
	}

	h.logger.Info("notifying", "type", event.Type, "order_id", event.OrderID)

	if err := h.post(ctx, text); err != nil {
		h.logger.Error("failed to deliver notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("deliver notification for order %s: %w", event.OrderID, err)
	}

	return nil
}

func (h *NotificationHandler) format(event domain.OrderEvent) (string, bool) {
	switch event.Type {
	case domain.EventOrderPaid:
		return fmt.Sprintf("Payment received: order %s, %s × %d, %d",
			event.OrderID, event.ServiceID, event.Quantity, event.Amount), true
	case domain.EventOrderCompleted:
		return fmt.Sprintf("Order fulfilled: %s, %s × %d, %d",
			event.OrderID, event.ServiceID, event.Quantity, event.Amount), true
	default:
		// order.created is noise at ops volume.
		return "", false
	}
}

func (h *NotificationHandler) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
