//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smmstore/commerce-bot/internal/domain"
	"github.com/smmstore/commerce-bot/internal/inventory"
	"github.com/smmstore/commerce-bot/internal/messaging"
	"github.com/smmstore/commerce-bot/internal/orders"
)

func testOrder(id string) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:               id,
		BotToken:         "bot-token",
		TelegramUserID:   42,
		TelegramUsername: "alice",
		ServiceID:        "ig-followers",
		ServiceName:      "1K Followers",
		Quantity:         1000,
		Amount:           5000,
		Currency:         "IDR",
		Status:           domain.OrderStatusPending,
		PaymentExpiredAt: now.Add(24 * time.Hour),
		CreatedAt:        now,
	}
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := orders.NewOrderRepository(db)

	order := testOrder("ORD-20260901-abc123")
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	fetched, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched == nil {
		t.Fatal("order not found after insert")
	}
	if fetched.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", fetched.Status)
	}

	if err := repo.MarkPaid(ctx, order.ID); err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}

	// Second settlement check loses the transition.
	if err := repo.MarkPaid(ctx, order.ID); !errors.Is(err, orders.ErrNotPending) {
		t.Fatalf("expected ErrNotPending on repeated MarkPaid, got %v", err)
	}

	if err := repo.MarkCompleted(ctx, order.ID, "acct1"); err != nil {
		t.Fatalf("failed to mark completed: %v", err)
	}

	undelivered, err := repo.ListUndelivered(ctx, "bot-token", 10)
	if err != nil {
		t.Fatalf("failed to list undelivered: %v", err)
	}
	if len(undelivered) != 1 || undelivered[0].ID != order.ID {
		t.Fatalf("expected the completed order to be undelivered, got %v", undelivered)
	}

	if err := repo.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("failed to mark delivered: %v", err)
	}

	undelivered, err = repo.ListUndelivered(ctx, "bot-token", 10)
	if err != nil {
		t.Fatalf("failed to list undelivered: %v", err)
	}
	if len(undelivered) != 0 {
		t.Fatalf("expected no undelivered orders after the stamp, got %d", len(undelivered))
	}

	fetched, err = repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if fetched.DeliveredAt == nil {
		t.Fatal("expected a delivery stamp")
	}
	if fetched.ResultLink != "acct1" {
		t.Fatalf("expected result link 'acct1', got '%s'", fetched.ResultLink)
	}
}

func TestExpirePendingOrders(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := orders.NewOrderRepository(db)

	expired := testOrder("ORD-expired")
	expired.PaymentExpiredAt = time.Now().UTC().Add(-time.Hour)
	fresh := testOrder("ORD-fresh")
	paid := testOrder("ORD-paid")
	paid.PaymentExpiredAt = time.Now().UTC().Add(-time.Hour)

	for _, order := range []*domain.Order{expired, fresh, paid} {
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("failed to create order %s: %v", order.ID, err)
		}
	}
	if err := repo.MarkPaid(ctx, paid.ID); err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}

	ids, err := repo.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to expire pending orders: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("expected only %s to expire, got %v", expired.ID, ids)
	}

	fetched, _ := repo.GetByID(ctx, expired.ID)
	if fetched.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", fetched.Status)
	}
	fetched, _ = repo.GetByID(ctx, paid.ID)
	if fetched.Status != domain.OrderStatusPaid {
		t.Fatalf("a paid order must not expire, got %s", fetched.Status)
	}
}

func TestConcurrentClaimsNeverShareAUnit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	orderRepo := orders.NewOrderRepository(db)
	unitRepo := inventory.NewInventoryRepository(db)

	const units = 3
	const claimers = 10

	for i := 0; i < units; i++ {
		if _, err := unitRepo.Add(ctx, "acct", "pw"); err != nil {
			t.Fatalf("failed to stock unit: %v", err)
		}
	}
	orderIDs := make([]string, claimers)
	for i := range orderIDs {
		order := testOrder("ORD-claim-" + string(rune('a'+i)))
		if err := orderRepo.Create(ctx, order); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		orderIDs[i] = order.ID
	}

	var wg sync.WaitGroup
	results := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = unitRepo.Claim(ctx, orderIDs[i])
		}()
	}
	wg.Wait()

	var won, exhausted int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, inventory.ErrOutOfStock):
			exhausted++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if won != units {
		t.Fatalf("expected %d winners, got %d", units, won)
	}
	if exhausted != claimers-units {
		t.Fatalf("expected %d exhausted, got %d", claimers-units, exhausted)
	}

	available, err := unitRepo.CountAvailable(ctx)
	if err != nil {
		t.Fatalf("failed to count available: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected 0 available units, got %d", available)
	}
}

func TestInventoryStockingAPI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := inventory.NewInventoryRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := inventory.NewHandler(repo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /inventory/units", handler.HandleAddUnit)
	mux.HandleFunc("GET /inventory/availability", handler.HandleAvailability)

	reqBody := `{"login": "acct1", "secret": "pw1"}`
	req := httptest.NewRequest(http.MethodPost, "/inventory/units", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("expected unit id to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/inventory/availability", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var availability map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&availability); err != nil {
		t.Fatalf("failed to decode availability: %v", err)
	}
	if availability["available"] != 1 {
		t.Fatalf("expected 1 available unit, got %d", availability["available"])
	}
}

func TestEventPublishing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	producer := messaging.NewProducer(brokers, "order.events")
	defer func() { _ = producer.Close() }()

	event := domain.OrderEvent{
		Type:      domain.EventOrderCreated,
		OrderID:   "ORD-kafka-1",
		BotToken:  "bot-token",
		ServiceID: "ig-followers",
		Quantity:  1000,
		Amount:    5000,
		Status:    domain.OrderStatusPending,
		Timestamp: time.Now().UTC(),
	}
	if err := producer.Publish(ctx, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}
}
