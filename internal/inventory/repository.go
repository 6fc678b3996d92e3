package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/smmstore/commerce-bot/internal/domain"
)

var ErrOutOfStock = errors.New("no available inventory unit")

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Claim atomically allocates one available unit to the order. The row lock
// with SKIP LOCKED guarantees two concurrent claims never pick the same
// unit; if every unit is taken or locked, the claim fails with
// ErrOutOfStock and nothing is written.
func (r *InventoryRepository) Claim(ctx context.Context, orderID string) (*domain.InventoryUnit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	unit := &domain.InventoryUnit{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, login, secret, created_at
		FROM inventory_units
		WHERE status = $1
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, domain.UnitStatusAvailable).Scan(&unit.ID, &unit.Login, &unit.Secret, &unit.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOutOfStock
		}
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE inventory_units
		SET status = $1, order_id = $2, sold_at = NOW()
		WHERE id = $3
		RETURNING sold_at
	`, domain.UnitStatusSold, orderID, unit.ID).Scan(&unit.SoldAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	unit.Status = domain.UnitStatusSold
	unit.OrderID = &orderID
	return unit, nil
}

// Add stocks a new unit. Stocking happens out-of-band from the bot flow.
func (r *InventoryRepository) Add(ctx context.Context, login, secret string) (*domain.InventoryUnit, error) {
	unit := &domain.InventoryUnit{
		ID:     uuid.New().String(),
		Login:  login,
		Secret: secret,
		Status: domain.UnitStatusAvailable,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO inventory_units (id, login, secret, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, unit.ID, unit.Login, unit.Secret, unit.Status).Scan(&unit.CreatedAt)
	if err != nil {
		return nil, err
	}

	return unit, nil
}

func (r *InventoryRepository) CountAvailable(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM inventory_units WHERE status = $1
	`, domain.UnitStatusAvailable).Scan(&count)
	return count, err
}

// GetByOrderID returns the unit sold to an order, or nil if none.
func (r *InventoryRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.InventoryUnit, error) {
	unit := &domain.InventoryUnit{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, login, secret, status, order_id, sold_at, created_at
		FROM inventory_units
		WHERE order_id = $1
	`, orderID).Scan(&unit.ID, &unit.Login, &unit.Secret, &unit.Status, &unit.OrderID, &unit.SoldAt, &unit.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return unit, nil
}
