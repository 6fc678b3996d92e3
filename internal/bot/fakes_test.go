package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smmstore/commerce-bot/internal/domain"
	"github.com/smmstore/commerce-bot/internal/inventory"
	"github.com/smmstore/commerce-bot/internal/orders"
	"github.com/smmstore/commerce-bot/internal/payment"
	"github.com/smmstore/commerce-bot/internal/telegram"
)

type sentMessage struct {
	chatID   int64
	text     string
	photoURL string
	keyboard telegram.Keyboard
}

type callbackAnswer struct {
	id    string
	text  string
	alert bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	sendErr  error
	messages []sentMessage
	answers  []callbackAnswer
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, keyboard telegram.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (m *fakeMessenger) SendPhoto(_ context.Context, chatID int64, photoURL, caption string, keyboard telegram.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, sentMessage{chatID: chatID, text: caption, photoURL: photoURL, keyboard: keyboard})
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, callbackAnswer{id: callbackID, text: text, alert: alert})
	return nil
}

func (m *fakeMessenger) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.messages...)
}

func (m *fakeMessenger) lastMessage() (sentMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return sentMessage{}, false
	}
	return m.messages[len(m.messages)-1], true
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*domain.Order)}
}

func (s *fakeOrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return errors.New("duplicate order id")
	}
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *fakeOrderStore) MarkPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != domain.OrderStatusPending {
		return orders.ErrNotPending
	}
	order.Status = domain.OrderStatusPaid
	return nil
}

func (s *fakeOrderStore) MarkCompleted(_ context.Context, id, resultLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != domain.OrderStatusPaid {
		return orders.ErrNotPending
	}
	order.Status = domain.OrderStatusCompleted
	order.ResultLink = resultLink
	return nil
}

func (s *fakeOrderStore) MarkDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[id]; ok && order.DeliveredAt == nil {
		now := time.Now()
		order.DeliveredAt = &now
	}
	return nil
}

func (s *fakeOrderStore) ListByUser(_ context.Context, botToken string, userID int64, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Order
	for _, order := range s.orders {
		if order.BotToken == botToken && order.TelegramUserID == userID && len(result) < limit {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) ListUndelivered(_ context.Context, botToken string, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Order
	for _, order := range s.orders {
		if order.BotToken == botToken && order.Status == domain.OrderStatusCompleted && order.DeliveredAt == nil && len(result) < limit {
			result = append(result, *order)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *fakeOrderStore) statusOf(id string) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[id]; ok {
		return order.Status
	}
	return ""
}

func (s *fakeOrderStore) only() *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		copied := *order
		return &copied
	}
	return nil
}

type fakeUnitStore struct {
	mu    sync.Mutex
	units []*domain.InventoryUnit
}

func (s *fakeUnitStore) stock(id, login, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, &domain.InventoryUnit{
		ID:     id,
		Login:  login,
		Secret: secret,
		Status: domain.UnitStatusAvailable,
	})
}

func (s *fakeUnitStore) Claim(_ context.Context, orderID string) (*domain.InventoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unit := range s.units {
		if unit.Status == domain.UnitStatusAvailable {
			now := time.Now()
			unit.Status = domain.UnitStatusSold
			unit.OrderID = &orderID
			unit.SoldAt = &now
			copied := *unit
			return &copied, nil
		}
	}
	return nil, inventory.ErrOutOfStock
}

func (s *fakeUnitStore) GetByOrderID(_ context.Context, orderID string) (*domain.InventoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unit := range s.units {
		if unit.OrderID != nil && *unit.OrderID == orderID {
			copied := *unit
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeUnitStore) soldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, unit := range s.units {
		if unit.Status == domain.UnitStatusSold {
			count++
		}
	}
	return count
}

type fakeGateway struct {
	mu          sync.Mutex
	status      payment.TransactionStatus
	chargeErr   error
	statusErr   error
	chargeDelay time.Duration
	charges     int
}

func (g *fakeGateway) Charge(_ context.Context, charge payment.ChargeRequest) (*payment.Transaction, error) {
	if g.chargeDelay > 0 {
		time.Sleep(g.chargeDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges++
	return &payment.Transaction{
		TransactionID: "tx-" + charge.OrderID,
		QRISURL:       "https://gw.example/qr/" + charge.OrderID,
	}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

func (g *fakeGateway) GetStatus(_ context.Context, _ string) (payment.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}
