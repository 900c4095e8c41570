package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks an order through its lifecycle. Orders are created pending;
// later transitions happen outside the gateway.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// CartItem is a single line of a submitted cart. It exists only inside an
// order; there is no independent cart persistence.
type CartItem struct {
	ProductID int             `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Unit      string          `json:"unit"`
}

// Order represents a persisted customer order. Orders are append-only from
// the gateway's perspective: no update or delete path exists here.
type Order struct {
	ID        int64           `json:"id"`
	Items     []CartItem      `json:"items"`
	Phone     string          `json:"phone,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DayStats is one row of the per-day analytics breakdown.
type DayStats struct {
	Day     string          `json:"day"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Stats aggregates orders over a trailing day-range window.
type Stats struct {
	Days         int              `json:"days"`
	Orders       int64            `json:"orders"`
	Revenue      decimal.Decimal  `json:"revenue"`
	AverageTotal decimal.Decimal  `json:"average_total"`
	ByStatus     map[Status]int64 `json:"by_status"`
	ByDay        []DayStats       `json:"by_day,omitempty"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order and returns its generated id.
	Create(ctx context.Context, o *Order) (int64, error)
	// Recent returns orders newest first.
	Recent(ctx context.Context, limit, offset int) ([]Order, error)
	// Analytics aggregates orders over the trailing days window.
	// The per-day breakdown is included only when detailed is set.
	Analytics(ctx context.Context, days int, detailed bool) (*Stats, error)
}
