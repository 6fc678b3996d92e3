package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smmstore/commerce-bot/internal/domain"
)

type webhookCapture struct {
	mu       sync.Mutex
	status   int
	messages []string
}

func (c *webhookCapture) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.messages = append(c.messages, body["text"])
	status := c.status
	c.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (c *webhookCapture) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.messages))
	copy(result, c.messages)
	return result
}

func eventPayload(t *testing.T, eventType string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.OrderEvent{
		Type:      eventType,
		OrderID:   "ORD-1",
		BotToken:  "bot-token",
		ServiceID: "ig-followers",
		Quantity:  1000,
		Amount:    5000,
		Status:    domain.OrderStatusPaid,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return data
}

func TestHandleNotifiesOnPaidAndCompleted(t *testing.T) {
	capture := &webhookCapture{}
	server := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer server.Close()

	handler := NewNotificationHandler(server.URL, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, eventType := range []string{domain.EventOrderPaid, domain.EventOrderCompleted} {
		if err := handler.Handle(context.Background(), eventPayload(t, eventType)); err != nil {
			t.Fatalf("handle %s: %v", eventType, err)
		}
	}

	messages := capture.received()
	if len(messages) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "Payment received") || !strings.Contains(messages[0], "ORD-1") {
		t.Errorf("unexpected paid notification: %q", messages[0])
	}
	if !strings.Contains(messages[1], "Order fulfilled") {
		t.Errorf("unexpected completed notification: %q", messages[1])
	}
}

func TestHandleSkipsCreatedEvents(t *testing.T) {
	capture := &webhookCapture{}
	server := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer server.Close()

	handler := NewNotificationHandler(server.URL, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := handler.Handle(context.Background(), eventPayload(t, domain.EventOrderCreated)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(capture.received()) != 0 {
		t.Error("created events must not notify")
	}
}

func TestHandleSurfacesWebhookFailure(t *testing.T) {
	capture := &webhookCapture{status: http.StatusInternalServerError}
	server := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer server.Close()

	handler := NewNotificationHandler(server.URL, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	// A failed webhook must error so the offset is not committed.
	if err := handler.Handle(context.Background(), eventPayload(t, domain.EventOrderPaid)); err == nil {
		t.Fatal("expected an error from a failing webhook")
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	handler := NewNotificationHandler("http://unused", http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := handler.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected an unmarshal error")
	}
}
