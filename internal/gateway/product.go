package gateway

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dmarkhas/greengrocer/internal/cache"
	"github.com/dmarkhas/greengrocer/internal/domain/product"
	"github.com/dmarkhas/greengrocer/internal/validate"
)

// productPayload is the JSON body accepted by the admin create and update
// routes.
type productPayload struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Unit        string          `json:"unit" validate:"required,unit"`
	Stock       int             `json:"stock" validate:"gte=0"`
	SortOrder   int             `json:"sort_order" validate:"omitempty,gte=1"`
}

// fields normalizes the payload into domain fields. String inputs are
// cleaned; a missing sort order defaults to 1.
func (p *productPayload) fields() product.Fields {
	sortOrder := p.SortOrder
	if sortOrder == 0 {
		sortOrder = 1
	}
	return product.Fields{
		Name:        validate.CleanString(p.Name),
		Price:       p.Price,
		Description: validate.CleanString(p.Description),
		Image:       validate.CleanString(p.Image),
		Unit:        product.Unit(p.Unit),
		Stock:       p.Stock,
		SortOrder:   sortOrder,
	}
}

func decodeProductPayload(r *http.Request) (*productPayload, error) {
	var payload productPayload
	if err := validate.DecodeJSON(r.Body, &payload); err != nil {
		return nil, err
	}
	payload.Name = validate.CleanString(payload.Name)
	if err := validate.Struct(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit, err = validate.IntInRange("limit", q.Get("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return 0, 0, err
	}
	offset, err = validate.IntInRange("offset", q.Get("offset"), 0, 0, 1<<30)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func productListPayload(products []product.Product, limit, offset int) map[string]any {
	if products == nil {
		products = []product.Product{}
	}
	return map[string]any{
		"products": products,
		"count":    len(products),
		"limit":    limit,
		"offset":   offset,
	}
}

// listProducts serves the public paginated catalog: active rows only,
// memoized for the cache TTL. Concurrent misses for the same key are
// collapsed into a single store query.
func (g *Gateway) listProducts(ctx context.Context, r *http.Request) (any, error) {
	limit, offset, err := pageParams(r)
	if err != nil {
		return nil, err
	}

	key := cache.CatalogKey(false, limit, offset)
	if payload, hit := g.cache.Get(key); hit {
		return payload, nil
	}

	payload, err, _ := g.inflight.Do(key, func() (any, error) {
		products, err := g.products.List(ctx, false, limit, offset)
		if err != nil {
			// Store failure: nothing is cached, the error propagates.
			return nil, err
		}
		result := productListPayload(products, limit, offset)
		g.cache.Put(key, result)
		return result, nil
	})
	return payload, err
}

// getProduct serves a single active product by id.
func (g *Gateway) getProduct(ctx context.Context, r *http.Request) (any, error) {
	id, err := validate.PositiveInt("id", r.URL.Query().Get("id"))
	if err != nil {
		return nil, err
	}
	p, err := g.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"product": p}, nil
}

// adminListProducts serves the admin catalog listing, inactive rows
// included. Admin reads bypass the response cache.
func (g *Gateway) adminListProducts(ctx context.Context, r *http.Request) (any, error) {
	limit, offset, err := pageParams(r)
	if err != nil {
		return nil, err
	}
	products, err := g.products.List(ctx, true, limit, offset)
	if err != nil {
		return nil, err
	}
	return productListPayload(products, limit, offset), nil
}

// createProduct inserts a new catalog row. The catalog cache prefix is
// invalidated before success is reported, so no stale read can follow the
// write.
func (g *Gateway) createProduct(ctx context.Context, r *http.Request) (any, error) {
	payload, err := decodeProductPayload(r)
	if err != nil {
		return nil, err
	}
	if !payload.Price.IsPositive() {
		return nil, validate.Errorf("price", "must be greater than 0")
	}

	id, err := g.products.Create(ctx, payload.fields())
	if err != nil {
		return nil, err
	}
	g.cache.InvalidatePrefix(cache.CatalogPrefix)
	return map[string]any{"id": id}, nil
}

// updateProduct overwrites the mutable fields of an active product.
func (g *Gateway) updateProduct(ctx context.Context, r *http.Request) (any, error) {
	id, err := validate.PositiveInt("id", r.URL.Query().Get("id"))
	if err != nil {
		return nil, err
	}
	payload, err := decodeProductPayload(r)
	if err != nil {
		return nil, err
	}
	if payload.Price.IsNegative() {
		return nil, validate.Errorf("price", "must not be negative")
	}

	if err := g.products.Update(ctx, id, payload.fields()); err != nil {
		return nil, err
	}
	g.cache.InvalidatePrefix(cache.CatalogPrefix)
	return map[string]any{"id": id, "updated": true}, nil
}

// softDeleteProduct marks a product inactive. Deleting an already-inactive
// product reports not found rather than a second successful deletion.
func (g *Gateway) softDeleteProduct(ctx context.Context, r *http.Request) (any, error) {
	id, err := validate.PositiveInt("id", r.URL.Query().Get("id"))
	if err != nil {
		return nil, err
	}
	if err := g.products.SoftDelete(ctx, id); err != nil {
		return nil, err
	}
	g.cache.InvalidatePrefix(cache.CatalogPrefix)
	return map[string]any{"id": id, "deleted": true}, nil
}
