package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/smmstore/commerce-bot/internal/domain"
)

var (
	// ErrNotPending is returned when a conditional status update finds the
	// order already past the expected status. Callers treat it as "someone
	// else got here first", not as a failure.
	ErrNotPending = errors.New("order is not pending")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, bot_token, telegram_user_id, telegram_username,
	service_id, service_name, quantity, amount, currency, status,
	gateway_tx_id, qris_url, target_link, result_link,
	payment_expired_at, delivered_at, created_at, updated_at
`

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, bot_token, telegram_user_id, telegram_username,
			service_id, service_name, quantity, amount, currency, status,
			gateway_tx_id, qris_url, target_link, result_link,
			payment_expired_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
	`,
		order.ID, order.BotToken, order.TelegramUserID, order.TelegramUsername,
		order.ServiceID, order.ServiceName, order.Quantity, order.Amount, order.Currency, order.Status,
		order.GatewayTxID, order.QRISURL, order.TargetLink, order.ResultLink,
		order.PaymentExpiredAt, order.CreatedAt,
	)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.BotToken, &order.TelegramUserID, &order.TelegramUsername,
		&order.ServiceID, &order.ServiceName, &order.Quantity, &order.Amount, &order.Currency, &order.Status,
		&order.GatewayTxID, &order.QRISURL, &order.TargetLink, &order.ResultLink,
		&order.PaymentExpiredAt, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return order, nil
}

// MarkPaid moves a pending order to paid. The status predicate makes the
// call idempotent under repeated payment checks: the first caller wins,
// later callers get ErrNotPending.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.OrderStatusPaid, id, domain.OrderStatusPending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotPending
	}

	return nil
}

// MarkCompleted moves a paid order to completed and records the result link.
func (r *OrderRepository) MarkCompleted(ctx context.Context, id, resultLink string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, result_link = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.OrderStatusCompleted, resultLink, id, domain.OrderStatusPaid)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotPending
	}

	return nil
}

// MarkDelivered stamps the delivery acknowledgement, kept separate from the
// completed status so undelivered orders remain visible to reconciliation.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET delivered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	return err
}

// ExpirePending cancels pending orders whose payment window has passed and
// returns the ids it touched.
func (r *OrderRepository) ExpirePending(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE status = $2 AND payment_expired_at < $3
		RETURNING id
	`, domain.OrderStatusCancelled, domain.OrderStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListUndelivered returns a bot's completed orders whose delivery message
// was never acknowledged, oldest first.
func (r *OrderRepository) ListUndelivered(ctx context.Context, botToken string, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE bot_token = $1 AND status = $2 AND delivered_at IS NULL
		ORDER BY updated_at
		LIMIT $3
	`, botToken, domain.OrderStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.BotToken, &order.TelegramUserID, &order.TelegramUsername,
			&order.ServiceID, &order.ServiceName, &order.Quantity, &order.Amount, &order.Currency, &order.Status,
			&order.GatewayTxID, &order.QRISURL, &order.TargetLink, &order.ResultLink,
			&order.PaymentExpiredAt, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// ListByUser returns a chat user's most recent orders for this bot.
func (r *OrderRepository) ListByUser(ctx context.Context, botToken string, userID int64, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE bot_token = $1 AND telegram_user_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, botToken, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.BotToken, &order.TelegramUserID, &order.TelegramUsername,
			&order.ServiceID, &order.ServiceName, &order.Quantity, &order.Amount, &order.Currency, &order.Status,
			&order.GatewayTxID, &order.QRISURL, &order.TargetLink, &order.ResultLink,
			&order.PaymentExpiredAt, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}
