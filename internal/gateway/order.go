package gateway

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dmarkhas/greengrocer/internal/domain/order"
	"github.com/dmarkhas/greengrocer/internal/validate"
)

// orderPayload is the JSON body accepted by the public order route.
type orderPayload struct {
	Items []orderItemPayload `json:"items"`
	Phone string             `json:"phone"`
	Notes string             `json:"notes"`
}

type orderItemPayload struct {
	ID    int             `json:"id"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// submitOrder validates the cart atomically and persists the order. The
// order must be stored before any external messaging handoff is attempted;
// the handoff itself happens outside this core.
func (g *Gateway) submitOrder(ctx context.Context, r *http.Request) (any, error) {
	var payload orderPayload
	if err := validate.DecodeJSON(r.Body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, validate.Errorf("items", "cart must contain at least one item")
	}
	items := make([]order.CartItem, len(payload.Items))
	for i, item := range payload.Items {
		if item.ID <= 0 {
			return nil, validate.Errorf("items", "item %d: id must be a positive integer", i+1)
		}
		if item.Qty <= 0 {
			return nil, validate.Errorf("items", "item %d: qty must be greater than 0", i+1)
		}
		if item.Price.IsNegative() {
			return nil, validate.Errorf("items", "item %d: price must not be negative", i+1)
		}
		items[i] = order.CartItem{
			ProductID: item.ID,
			Quantity:  item.Qty,
			Price:     item.Price,
		}
	}

	phone, err := validate.Phone(payload.Phone)
	if err != nil {
		return nil, err
	}

	id, err := g.orders.Submit(ctx, order.SubmitRequest{
		Items: items,
		Phone: phone,
		Notes: validate.CleanString(payload.Notes),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"order_id": id, "status": order.StatusPending}, nil
}

// recentOrders serves the admin order history, newest first.
func (g *Gateway) recentOrders(ctx context.Context, r *http.Request) (any, error) {
	limit, offset, err := pageParams(r)
	if err != nil {
		return nil, err
	}
	orders, err := g.history.Recent(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return map[string]any{
		"orders": orders,
		"count":  len(orders),
		"limit":  limit,
		"offset": offset,
	}, nil
}

// analytics serves aggregate order statistics over a bounded day-range
// window, optionally with a per-day breakdown.
func (g *Gateway) analytics(ctx context.Context, r *http.Request) (any, error) {
	q := r.URL.Query()
	days, err := validate.IntInRange("days", q.Get("days"), defaultDays, 1, maxDays)
	if err != nil {
		return nil, err
	}
	detailed := q.Get("detailed") == "true" || q.Get("detailed") == "1"

	stats, err := g.history.Analytics(ctx, days, detailed)
	if err != nil {
		return nil, err
	}
	return map[string]any{"analytics": stats}, nil
}
