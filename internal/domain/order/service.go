package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmarkhas/greengrocer/internal/domain/product"
)

// Sentinel errors for cart validation.
var (
	ErrEmptyCart       = fmt.Errorf("cart must contain at least one item")
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
)

// ProductUnavailableError indicates a cart references a product that does not
// exist or has been deactivated.
type ProductUnavailableError struct {
	ProductID int
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// SubmitRequest holds the input for submitting an order.
type SubmitRequest struct {
	Items []CartItem
	Phone string
	Notes string
}

// Service encapsulates order submission business logic.
type Service struct {
	products product.Repository
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
	}
}

// Submit validates the cart against the live catalog, prices every line from
// stored product data, persists the order, and returns the generated id.
// Validation is atomic: any bad line rejects the whole cart and nothing is
// persisted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (int64, error) {
	if len(req.Items) == 0 {
		return 0, ErrEmptyCart
	}

	ids := make([]int64, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return 0, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = int64(item.ProductID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Reprice each line from the catalog. Client-submitted prices were
	// already validated at the boundary but the stored price is what the
	// order is charged at.
	items := make([]CartItem, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[int64(item.ProductID)]
		if !ok {
			return 0, &ProductUnavailableError{ProductID: item.ProductID}
		}
		items[i] = CartItem{
			ProductID: item.ProductID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.Price,
			Unit:      string(p.Unit),
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(p.Price.Mul(qty))
	}

	o := &Order{
		Items:  items,
		Phone:  req.Phone,
		Total:  total.Round(2),
		Status: StatusPending,
		Notes:  req.Notes,
	}
	id, err := s.orders.Create(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}
