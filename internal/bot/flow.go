package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smmstore/commerce-bot/internal/domain"
	"github.com/smmstore/commerce-bot/internal/orders"
	"github.com/smmstore/commerce-bot/internal/payment"
	"github.com/smmstore/commerce-bot/internal/telegram"
	"github.com/smmstore/commerce-bot/internal/telemetry"
)

// OrderStore is the slice of the order repository the flow depends on.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, resultLink string) error
	MarkDelivered(ctx context.Context, id string) error
	ListByUser(ctx context.Context, botToken string, userID int64, limit int) ([]domain.Order, error)
	ListUndelivered(ctx context.Context, botToken string, limit int) ([]domain.Order, error)
}

// UnitStore is the slice of the inventory repository fulfillment depends on.
type UnitStore interface {
	Claim(ctx context.Context, orderID string) (*domain.InventoryUnit, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.InventoryUnit, error)
}

// PaymentGateway creates and polls gateway transactions.
type PaymentGateway interface {
	Charge(ctx context.Context, charge payment.ChargeRequest) (*payment.Transaction, error)
	GetStatus(ctx context.Context, orderID string) (payment.TransactionStatus, error)
}

// EventPublisher emits order lifecycle events. May be nil-checked by
// holders; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// UserNotice is an error whose text is meant for the chat user, delivered
// as a callback acknowledgement instead of being logged as a failure.
type UserNotice struct {
	Text  string
	Alert bool
}

func (n *UserNotice) Error() string { return n.Text }

// quantityPresets is the fixed quantity menu, filtered per service bounds.
var quantityPresets = []int{100, 250, 500, 1000, 2500, 5000, 10000}

// supportedHosts is the target-link platform allow-list.
var supportedHosts = []string{
	"instagram.com",
	"tiktok.com",
	"youtube.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"t.me",
}

const paymentWindow = 24 * time.Hour

// Flow drives one bot instance's conversation: menu navigation, session
// tracking, order creation and payment reconciliation.
type Flow struct {
	botToken  string
	currency  string
	catalog   domain.Catalog
	sessions  *SessionStore
	orders    OrderStore
	gateway   PaymentGateway
	messenger telegram.Messenger
	fulfiller *Fulfiller
	publisher EventPublisher
	metrics   *telemetry.BotMetrics
	logger    *slog.Logger
}

func NewFlow(
	botToken string,
	catalog domain.Catalog,
	sessions *SessionStore,
	orderStore OrderStore,
	gateway PaymentGateway,
	messenger telegram.Messenger,
	fulfiller *Fulfiller,
	publisher EventPublisher,
	metrics *telemetry.BotMetrics,
	logger *slog.Logger,
) *Flow {
	return &Flow{
		botToken:  botToken,
		currency:  "IDR",
		catalog:   catalog,
		sessions:  sessions,
		orders:    orderStore,
		gateway:   gateway,
		messenger: messenger,
		fulfiller: fulfiller,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleMessage processes free text. The only state in which text is
// meaningful is a pending session awaiting a target link.
func (f *Flow) HandleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.Text == "/start" {
		return f.sendMainMenu(ctx, msg.ChatID)
	}

	if _, ok := f.sessions.Get(msg.ChatID); ok {
		return f.handleLink(ctx, msg)
	}

	return f.messenger.SendText(ctx, msg.ChatID,
		"Use /start to open the menu.", nil)
}

func (f *Flow) sendMainMenu(ctx context.Context, chatID int64) error {
	keyboard := telegram.Keyboard{}
	for _, category := range f.catalog.Categories() {
		keyboard = append(keyboard, []telegram.Button{
			{Text: category, Data: categoryData(category)},
		})
	}
	keyboard = append(keyboard, []telegram.Button{
		{Text: "My Orders", Data: myOrdersData},
		{Text: "Help", Data: helpData},
	})

	return f.messenger.SendText(ctx, chatID,
		"Welcome! Pick a category to get started.", keyboard)
}

func (f *Flow) HandleMainMenu(ctx context.Context, cb *telegram.Callback) error {
	return f.sendMainMenu(ctx, cb.ChatID)
}

func (f *Flow) HandleCategory(ctx context.Context, cb *telegram.Callback, category string) error {
	services := f.catalog.ByCategory(category)
	if len(services) == 0 {
		return &UserNotice{Text: "That category is no longer available.", Alert: true}
	}

	keyboard := telegram.Keyboard{}
	for _, svc := range services {
		label := fmt.Sprintf("%s — %d %s / 1000", svc.Name, svc.PricePerK, f.currency)
		keyboard = append(keyboard, []telegram.Button{
			{Text: label, Data: serviceData(svc.ID)},
		})
	}
	keyboard = append(keyboard, []telegram.Button{
		{Text: "« Back", Data: mainMenuData},
	})

	return f.messenger.SendText(ctx, cb.ChatID, category+" services:", keyboard)
}

func (f *Flow) HandleService(ctx context.Context, cb *telegram.Callback, serviceID string) error {
	svc, ok := f.catalog.ByID(serviceID)
	if !ok {
		return &UserNotice{Text: "That service is no longer available.", Alert: true}
	}

	presets := presetsWithin(svc)
	if len(presets) == 0 {
		return &UserNotice{
			Text:  fmt.Sprintf("No quantity options between %d and %d right now.", svc.MinQuantity, svc.MaxQuantity),
			Alert: true,
		}
	}

	keyboard := telegram.Keyboard{}
	for _, qty := range presets {
		label := fmt.Sprintf("%d — %d %s", qty, svc.Price(qty), f.currency)
		keyboard = append(keyboard, []telegram.Button{
			{Text: label, Data: quantityData(svc.ID, qty)},
		})
	}
	keyboard = append(keyboard, []telegram.Button{
		{Text: "« Back", Data: categoryData(svc.Category)},
	})

	return f.messenger.SendText(ctx, cb.ChatID, svc.Name+" — choose a quantity:", keyboard)
}

func (f *Flow) HandleQuantity(ctx context.Context, cb *telegram.Callback, serviceID string, quantity int) error {
	svc, ok := f.catalog.ByID(serviceID)
	if !ok {
		return &UserNotice{Text: "That service is no longer available.", Alert: true}
	}
	if quantity < svc.MinQuantity || quantity > svc.MaxQuantity {
		return &UserNotice{Text: "That quantity is not available for this service.", Alert: true}
	}

	f.sessions.Put(cb.ChatID, Session{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Quantity:    quantity,
		Price:       svc.Price(quantity),
		UserID:      cb.UserID,
		Username:    cb.Username,
	})

	return f.messenger.SendText(ctx, cb.ChatID,
		fmt.Sprintf("%s × %d = %d %s\n\nNow send the link to your profile or post.",
			svc.Name, quantity, svc.Price(quantity), f.currency), nil)
}

// handleLink validates the submitted target link and creates the order.
// Invalid input re-prompts without touching the session. The session is
// taken before charging so two messages handled concurrently cannot both
// create an order; it is put back if the charge or the insert fails.
func (f *Flow) handleLink(ctx context.Context, msg *telegram.Message) error {
	link := strings.TrimSpace(msg.Text)
	if !linkSupported(link) {
		return f.messenger.SendText(ctx, msg.ChatID,
			"That doesn't look like a link to a supported platform. Please send a full URL, e.g. https://instagram.com/yourname.", nil)
	}

	session, ok := f.sessions.Take(msg.ChatID)
	if !ok {
		return f.messenger.SendText(ctx, msg.ChatID, "Use /start to open the menu.", nil)
	}

	orderID := newOrderID()

	tx, err := f.gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:   orderID,
		Amount:    session.Price,
		ItemName:  session.ServiceName,
		Quantity:  session.Quantity,
		PayerID:   fmt.Sprintf("%d", session.UserID),
		PayerName: session.Username,
	})
	if err != nil {
		f.sessions.Put(msg.ChatID, session)
		f.logger.Error("failed to create gateway transaction", "error", err, "order_id", orderID)
		return f.messenger.SendText(ctx, msg.ChatID,
			"Payment service is unavailable right now. Please send your link again in a moment.", nil)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:               orderID,
		BotToken:         f.botToken,
		TelegramUserID:   session.UserID,
		TelegramUsername: session.Username,
		ServiceID:        session.ServiceID,
		ServiceName:      session.ServiceName,
		Quantity:         session.Quantity,
		Amount:           session.Price,
		Currency:         f.currency,
		Status:           domain.OrderStatusPending,
		GatewayTxID:      tx.TransactionID,
		QRISURL:          tx.QRISURL,
		TargetLink:       link,
		PaymentExpiredAt: now.Add(paymentWindow),
		CreatedAt:        now,
	}

	if err := f.orders.Create(ctx, order); err != nil {
		f.sessions.Put(msg.ChatID, session)
		f.logger.Error("failed to persist order", "error", err, "order_id", orderID)
		return f.messenger.SendText(ctx, msg.ChatID,
			"Could not register your order. Please send your link again.", nil)
	}

	f.metrics.OrderCreated(ctx)
	f.publish(ctx, domain.EventOrderCreated, order)
	f.logger.Info("order created", "order_id", orderID, "service_id", order.ServiceID, "amount", order.Amount)

	summary := fmt.Sprintf(
		"Order %s\n%s × %d\nTarget: %s\nTotal: %d %s\n\nScan the QR code to pay. The payment expires in 24 hours.",
		order.ID, order.ServiceName, order.Quantity, order.TargetLink, order.Amount, order.Currency,
	)
	keyboard := telegram.Keyboard{
		{{Text: "Check Payment", Data: checkPaymentData(order.ID)}},
		{{Text: "Main Menu", Data: mainMenuData}},
	}

	if order.QRISURL != "" {
		return f.messenger.SendPhoto(ctx, msg.ChatID, order.QRISURL, summary, keyboard)
	}
	return f.messenger.SendText(ctx, msg.ChatID, summary, keyboard)
}

// HandleCheckPayment reconciles an order against the gateway. Safe under
// repeated taps: only the tap that wins the pending→paid transition hands
// off to fulfillment.
func (f *Flow) HandleCheckPayment(ctx context.Context, cb *telegram.Callback, orderID string) error {
	order, err := f.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("look up order %s: %w", orderID, err)
	}
	if order == nil {
		return &UserNotice{Text: "Order not found.", Alert: true}
	}

	if order.Status.Terminal() {
		if order.Status == domain.OrderStatusCompleted {
			return &UserNotice{Text: "This order is already completed."}
		}
		return &UserNotice{
			Text:  fmt.Sprintf("This order is %s and can no longer be paid.", order.Status),
			Alert: true,
		}
	}

	status, err := f.gateway.GetStatus(ctx, orderID)
	if err != nil {
		return fmt.Errorf("query gateway for order %s: %w", orderID, err)
	}

	switch {
	case status.Settled():
		if err := f.orders.MarkPaid(ctx, orderID); err != nil {
			if errors.Is(err, orders.ErrNotPending) {
				// Another tap already claimed the transition.
				return &UserNotice{Text: "Payment received, your order is being processed."}
			}
			return fmt.Errorf("mark order %s paid: %w", orderID, err)
		}

		order.Status = domain.OrderStatusPaid
		f.metrics.PaymentSettled(ctx)
		f.publish(ctx, domain.EventOrderPaid, order)
		f.logger.Info("payment settled", "order_id", orderID, "gateway_status", status)

		if err := f.messenger.SendText(ctx, cb.ChatID,
			"Payment received! Your order is being processed.", nil); err != nil {
			f.logger.Error("failed to send processing message", "error", err, "order_id", orderID)
		}

		fulfillCtx := context.WithoutCancel(ctx)
		go func() {
			ctx, cancel := context.WithTimeout(fulfillCtx, 30*time.Second)
			defer cancel()
			if err := f.fulfiller.Fulfill(ctx, order); err != nil {
				f.logger.Error("fulfillment failed", "error", err, "order_id", orderID)
			}
		}()

		return nil

	case status == payment.StatusPending:
		return &UserNotice{Text: "Payment not received yet. Complete the payment and tap again."}

	default:
		return &UserNotice{
			Text:  fmt.Sprintf("Payment is not completed (status: %s).", status),
			Alert: true,
		}
	}
}

func (f *Flow) HandleMyOrders(ctx context.Context, cb *telegram.Callback) error {
	userOrders, err := f.orders.ListByUser(ctx, f.botToken, cb.UserID, 5)
	if err != nil {
		return fmt.Errorf("list orders for user %d: %w", cb.UserID, err)
	}
	if len(userOrders) == 0 {
		return &UserNotice{Text: "You have no orders yet."}
	}

	var b strings.Builder
	b.WriteString("Your recent orders:\n")
	for _, order := range userOrders {
		fmt.Fprintf(&b, "\n%s — %s × %d — %s", order.ID, order.ServiceName, order.Quantity, order.Status)
	}

	keyboard := telegram.Keyboard{{{Text: "Main Menu", Data: mainMenuData}}}
	return f.messenger.SendText(ctx, cb.ChatID, b.String(), keyboard)
}

func (f *Flow) HandleHelp(ctx context.Context, cb *telegram.Callback) error {
	keyboard := telegram.Keyboard{{{Text: "Main Menu", Data: mainMenuData}}}
	return f.messenger.SendText(ctx, cb.ChatID,
		"Pick a category, choose a service and quantity, send the target link, then pay via the QR code. "+
			"Tap Check Payment once you have paid.", keyboard)
}

func (f *Flow) publish(ctx context.Context, eventType string, order *domain.Order) {
	if f.publisher == nil {
		return
	}
	event := domain.OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		BotToken:  order.BotToken,
		ServiceID: order.ServiceID,
		Quantity:  order.Quantity,
		Amount:    order.Amount,
		Status:    order.Status,
		Timestamp: time.Now().UTC(),
	}
	if err := f.publisher.Publish(ctx, order.ID, event); err != nil {
		f.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "type", eventType)
	}
}

func presetsWithin(svc domain.CatalogService) []int {
	var presets []int
	for _, qty := range quantityPresets {
		if qty >= svc.MinQuantity && qty <= svc.MaxQuantity {
			presets = append(presets, qty)
		}
	}
	return presets
}

func linkSupported(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	for _, supported := range supportedHosts {
		if host == supported || strings.HasSuffix(host, "."+supported) {
			return true
		}
	}
	return false
}

// newOrderID builds a human-traceable id: timestamp for operators, random
// suffix for uniqueness. It doubles as the gateway idempotency key.
func newOrderID() string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}
