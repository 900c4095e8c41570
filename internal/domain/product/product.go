package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is
// no longer active.
var ErrNotFound = errors.New("product not found")

// Unit is the measurement unit a product is sold in.
type Unit string

const (
	UnitKg     Unit = "kg"
	UnitGram   Unit = "gram"
	UnitPacket Unit = "packet"
	UnitPiece  Unit = "piece"
	UnitLiter  Unit = "liter"
	UnitBox    Unit = "box"
)

// Units lists every recognized unit value.
var Units = []Unit{UnitKg, UnitGram, UnitPacket, UnitPiece, UnitLiter, UnitBox}

// Valid reports whether u is one of the recognized units.
func (u Unit) Valid() bool {
	switch u {
	case UnitKg, UnitGram, UnitPacket, UnitPiece, UnitLiter, UnitBox:
		return true
	}
	return false
}

// Product represents a catalog item available for purchase. Inactive products
// are soft-deleted: they stay in storage but are hidden from default reads.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Unit        Unit            `json:"unit"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	SortOrder   int             `json:"sort_order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Fields holds the mutable attributes accepted on create and update.
type Fields struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
	Unit        Unit
	Stock       int
	SortOrder   int
}

// Repository defines catalog persistence operations.
type Repository interface {
	// List returns products ordered by sort order. Inactive rows are
	// included only when includeInactive is set.
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]Product, error)
	// GetByID returns a single active product, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Product, error)
	// GetByIDs returns the active products matching any of the given IDs.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// Create persists a new product and returns its generated id.
	Create(ctx context.Context, f Fields) (int64, error)
	// Update overwrites the mutable fields of an active product.
	// Returns ErrNotFound when no active row matches.
	Update(ctx context.Context, id int64, f Fields) error
	// SoftDelete marks an active product inactive. Deleting a row that is
	// already inactive returns ErrNotFound.
	SoftDelete(ctx context.Context, id int64) error
}
