package domain

import "time"

type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusSold      UnitStatus = "sold"
)

// InventoryUnit is one sellable single-use credential. Once sold it is
// permanently bound to the owning order and excluded from allocation.
type InventoryUnit struct {
	ID        string     `json:"id"`
	Login     string     `json:"login"`
	Secret    string     `json:"secret"`
	Status    UnitStatus `json:"status"`
	OrderID   *string    `json:"order_id,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
