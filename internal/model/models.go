package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductState is the persisted lifecycle state of a tracked product.
//
// NEW is a transient marker for "never seen before" and is only ever used as
// the from-state of a product's first transition; it is never stored on a
// product row.
type ProductState string

const (
	StateNew        ProductState = "NEW"
	StateBuyable    ProductState = "BUYABLE"
	StateOutOfStock ProductState = "OUT_OF_STOCK"
	StateHidden     ProductState = "HIDDEN"
)

// Valid reports whether s is one of the closed set of states.
func (s ProductState) Valid() bool {
	switch s {
	case StateNew, StateBuyable, StateOutOfStock, StateHidden:
		return true
	}
	return false
}

// Product is the last known truth about one firstcry product.
//
// ProductID is the numeric id segment of the canonical product-detail URL and
// uniquely keys at most one row. FirstDiscovered is set on first observation
// and never changes afterwards; FirstDiscovered <= LastSeen always holds.
type Product struct {
	ProductID       string              `gorm:"primaryKey;type:varchar(32)" json:"product_id"`
	Name            string              `gorm:"not null" json:"name"`
	URL             string              `gorm:"not null" json:"url"`
	Price           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"price"`
	State           ProductState        `gorm:"type:varchar(16);not null" json:"state"`
	LastSeen        time.Time           `gorm:"not null" json:"last_seen"`
	FirstDiscovered time.Time           `gorm:"not null" json:"first_discovered"`
	BrandVerified   bool                `gorm:"not null" json:"brand_verified"`
}

// Transition is one append-only audit entry for an observed state change.
//
// FromState is nil for a product's first-ever observation. Notified records
// the notification decision made at commit time, not delivery success.
// Rows are never updated or deleted; ordering by Timestamp reconstructs the
// full history of a product.
type Transition struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string        `gorm:"index;type:varchar(32);not null" json:"product_id"`
	FromState *ProductState `gorm:"type:varchar(16)" json:"from_state"`
	ToState   ProductState  `gorm:"type:varchar(16);not null" json:"to_state"`
	Timestamp time.Time     `gorm:"not null" json:"timestamp"`
	Notified  bool          `gorm:"not null" json:"notified"`
}
