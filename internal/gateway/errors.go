package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dmarkhas/greengrocer/internal/domain/order"
	"github.com/dmarkhas/greengrocer/internal/domain/product"
	"github.com/dmarkhas/greengrocer/internal/validate"
)

// writeFailure maps a handler error onto the error envelope. Client-caused
// failures surface their field-level message; store and system failures are
// logged and reported generically so no internal detail leaks outside debug
// mode.
func (g *Gateway) writeFailure(ctx context.Context, w http.ResponseWriter, start time.Time, err error) {
	var (
		verr   *validate.ValidationError
		qtyErr *order.InvalidQuantityError
		unErr  *order.ProductUnavailableError
	)
	switch {
	case errors.As(err, &verr):
		g.writeError(w, start, http.StatusBadRequest, verr.Error(), "", nil)
	case errors.Is(err, order.ErrEmptyCart):
		g.writeError(w, start, http.StatusBadRequest, order.ErrEmptyCart.Error(), "", nil)
	case errors.As(err, &qtyErr):
		g.writeError(w, start, http.StatusBadRequest, qtyErr.Error(), "", nil)
	case errors.As(err, &unErr):
		g.writeError(w, start, http.StatusBadRequest, unErr.Error(), "", nil)
	case errors.Is(err, product.ErrNotFound):
		g.writeError(w, start, http.StatusNotFound, product.ErrNotFound.Error(), "", nil)
	default:
		zctx.From(ctx).Error("request failed", zap.Error(err))
		g.writeError(w, start, http.StatusInternalServerError, "internal error", err.Error(), nil)
	}
}
