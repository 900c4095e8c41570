package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkhas/greengrocer/internal/auth"
	"github.com/dmarkhas/greengrocer/internal/cache"
	"github.com/dmarkhas/greengrocer/internal/domain/order"
	"github.com/dmarkhas/greengrocer/internal/domain/product"
	"github.com/dmarkhas/greengrocer/internal/ratelimit"
	"github.com/dmarkhas/greengrocer/internal/storage/postgres"
)

// --- Mock implementations ---

// fakeCatalog is an in-memory product.Repository honoring the same
// active-row and pagination semantics as the real store.
type fakeCatalog struct {
	products []product.Product
	nextID   int64
	failAll  error
}

func (f *fakeCatalog) List(_ context.Context, includeInactive bool, limit, offset int) ([]product.Product, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []product.Product
	for _, p := range f.products {
		if p.Active || includeInactive {
			out = append(out, p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (*product.Product, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	for _, p := range f.products {
		if p.ID == id && p.Active {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (f *fakeCatalog) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := f.GetByID(context.Background(), id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Create(_ context.Context, fields product.Fields) (int64, error) {
	f.nextID++
	f.products = append(f.products, product.Product{
		ID:        f.nextID,
		Name:      fields.Name,
		Price:     fields.Price,
		Unit:      fields.Unit,
		Stock:     fields.Stock,
		SortOrder: fields.SortOrder,
		Active:    true,
	})
	return f.nextID, nil
}

func (f *fakeCatalog) Update(_ context.Context, id int64, fields product.Fields) error {
	for i, p := range f.products {
		if p.ID == id && p.Active {
			f.products[i].Name = fields.Name
			f.products[i].Price = fields.Price
			f.products[i].Unit = fields.Unit
			return nil
		}
	}
	return product.ErrNotFound
}

func (f *fakeCatalog) SoftDelete(_ context.Context, id int64) error {
	for i, p := range f.products {
		if p.ID == id && p.Active {
			f.products[i].Active = false
			return nil
		}
	}
	return product.ErrNotFound
}

type fakeOrders struct {
	orders []order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) (int64, error) {
	o.ID = int64(len(f.orders) + 1)
	o.CreatedAt = time.Now()
	f.orders = append(f.orders, *o)
	return o.ID, nil
}

func (f *fakeOrders) Recent(_ context.Context, limit, offset int) ([]order.Order, error) {
	if offset >= len(f.orders) {
		return nil, nil
	}
	out := f.orders[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrders) Analytics(_ context.Context, days int, detailed bool) (*order.Stats, error) {
	s := &order.Stats{
		Days:     days,
		Orders:   int64(len(f.orders)),
		ByStatus: map[order.Status]int64{order.StatusPending: int64(len(f.orders))},
	}
	if detailed {
		s.ByDay = []order.DayStats{{Day: "2025-06-01", Orders: s.Orders}}
	}
	return s, nil
}

type fakeChecker struct {
	d   *postgres.Diagnostic
	err error
}

func (f *fakeChecker) Check(context.Context) (*postgres.Diagnostic, error) {
	return f.d, f.err
}

// --- Helpers ---

const (
	adminUser = "admin"
	adminPass = "s3cret-pass"
)

type fixture struct {
	gw      *Gateway
	catalog *fakeCatalog
	orders  *fakeOrders
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog := &fakeCatalog{}
	orders := &fakeOrders{}
	checker := &fakeChecker{d: &postgres.Diagnostic{
		Database: true,
		Writable: true,
		Tables:   map[string]bool{"products": true, "orders": true},
	}}

	gw := New(cfg,
		catalog,
		order.NewService(catalog, orders),
		orders,
		checker,
		ratelimit.New(1000, time.Hour),
		cache.New(5*time.Minute),
		auth.NewGuard(adminUser, adminPass),
	)
	return &fixture{gw: gw, catalog: catalog, orders: orders}
}

func (f *fixture) seed(n int) {
	for i := range n {
		_, _ = f.catalog.Create(context.Background(), product.Fields{
			Name:      fmt.Sprintf("Product %d", i+1),
			Price:     decimal.RequireFromString("2.50"),
			Unit:      product.UnitKg,
			SortOrder: i + 1,
		})
	}
}

func adminHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(adminUser+":"+adminPass))
}

func (f *fixture) do(t *testing.T, method, endpoint, query, body, authz string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	url := "/api?endpoint=" + endpoint
	if query != "" {
		url += "&" + query
	}
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, url, rd)
	req.RemoteAddr = "198.51.100.1:4444"
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	f.gw.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "envelope data must be an object: %v", envelope)
	return d
}

// --- Envelope ---

func TestEnvelope_Success(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	w, envelope := f.do(t, http.MethodGet, "products", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, true, envelope["success"])
	assert.NotEmpty(t, envelope["timestamp"])
	assert.Contains(t, envelope, "elapsed_ms")
	assert.Contains(t, envelope, "data")
}

func TestEnvelope_Error(t *testing.T) {
	f := newFixture(t)

	w, envelope := f.do(t, http.MethodGet, "product", "id=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, float64(400), envelope["code"])
	assert.NotEmpty(t, envelope["error"])
	assert.NotEmpty(t, envelope["timestamp"])
}

func TestUnknownEndpoint_ListsCatalog(t *testing.T) {
	f := newFixture(t)

	w, envelope := f.do(t, http.MethodGet, "nonexistent", "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, envelope["success"])

	endpoints, ok := envelope["endpoints"].([]any)
	require.True(t, ok, "unmatched routes must return the endpoint catalog")
	assert.Contains(t, endpoints, "GET products")
	assert.Contains(t, endpoints, "POST order")
}

func TestEndpointNormalization(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	w, _ := f.do(t, http.MethodGet, "%2Fproducts%2F", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code, "leading/trailing slashes are trimmed before matching")
}

// --- Public catalog ---

func TestListProducts_Pagination(t *testing.T) {
	f := newFixture(t)
	f.seed(8)

	w, envelope := f.do(t, http.MethodGet, "products", "limit=5&offset=0", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	d := data(t, envelope)
	assert.Equal(t, float64(5), d["count"])
	assert.Len(t, d["products"], 5)
}

func TestListProducts_ExcludesInactive(t *testing.T) {
	f := newFixture(t)
	f.seed(3)
	require.NoError(t, f.catalog.SoftDelete(context.Background(), 2))

	_, envelope := f.do(t, http.MethodGet, "products", "", "", "")
	d := data(t, envelope)
	assert.Equal(t, float64(2), d["count"], "soft-deleted products never appear in default reads")
}

func TestListProducts_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "products", "limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodGet, "products", "limit=500", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(2)

	w, envelope := f.do(t, http.MethodGet, "product", "id=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	p := data(t, envelope)["product"].(map[string]any)
	assert.Equal(t, "Product 1", p["name"])
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	w, envelope := f.do(t, http.MethodGet, "product", "id=99", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, envelope["success"])
}

// --- Cache consistency ---

func TestCatalogCache_InvalidatedByWrite(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	_, envelope := f.do(t, http.MethodGet, "products", "", "", "")
	assert.Equal(t, float64(1), data(t, envelope)["count"])

	body := `{"name":"Oranges","price":4.20,"unit":"kg","stock":10}`
	w, _ := f.do(t, http.MethodPost, "admin/product", "", body, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	// A read immediately after a successful write must never see the
	// pre-write payload.
	_, envelope = f.do(t, http.MethodGet, "products", "", "", "")
	assert.Equal(t, float64(2), data(t, envelope)["count"])
}

func TestCatalogCache_InvalidatedByDelete(t *testing.T) {
	f := newFixture(t)
	f.seed(2)

	_, envelope := f.do(t, http.MethodGet, "products", "", "", "")
	assert.Equal(t, float64(2), data(t, envelope)["count"])

	w, _ := f.do(t, http.MethodDelete, "admin/product", "id=1", "", adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	_, envelope = f.do(t, http.MethodGet, "products", "", "", "")
	assert.Equal(t, float64(1), data(t, envelope)["count"])
}

// --- Auth ---

func TestAdminRoute_WrongPassword(t *testing.T) {
	f := newFixture(t)
	header := "Basic " + base64.StdEncoding.EncodeToString([]byte(adminUser+":wrongpass"))

	w, envelope := f.do(t, http.MethodGet, "admin/products", "", "", header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, envelope["success"])

	// The response must not reveal which half of the pair failed.
	raw := w.Body.String()
	assert.NotContains(t, strings.ToLower(raw), "password")
	assert.NotContains(t, strings.ToLower(raw), "username")
}

func TestAdminRoute_MissingCredentials(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "admin/products", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoute_ValidCredentials(t *testing.T) {
	f := newFixture(t)
	f.seed(2)
	require.NoError(t, f.catalog.SoftDelete(context.Background(), 1))

	w, envelope := f.do(t, http.MethodGet, "admin/products", "", "", adminHeader())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), data(t, envelope)["count"], "admin listing includes inactive rows")
}

// --- Admin product CRUD ---

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)

	body := `{"name":"Oranges","price":"4.20","unit":"kg","stock":10,"sort_order":3}`
	w, envelope := f.do(t, http.MethodPost, "admin/product", "", body, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), data(t, envelope)["id"])

	// Round-trip: fetching by the returned id yields matching fields.
	_, envelope = f.do(t, http.MethodGet, "product", "id=1", "", "")
	p := data(t, envelope)["product"].(map[string]any)
	assert.Equal(t, "Oranges", p["name"])
	assert.Equal(t, "4.20", p["price"])
	assert.Equal(t, "kg", p["unit"])
}

func TestCreateProduct_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := map[string]string{
		"empty body":     "",
		"malformed json": "{oops",
		"missing name":   `{"price":"4.20","unit":"kg"}`,
		"zero price":     `{"name":"X","price":0,"unit":"kg"}`,
		"negative price": `{"name":"X","price":-1,"unit":"kg"}`,
		"bad unit":       `{"name":"X","price":"4.20","unit":"bucket"}`,
		"long name":      `{"name":"` + strings.Repeat("x", 256) + `","price":1,"unit":"kg"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w, envelope := f.do(t, http.MethodPost, "admin/product", "", body, adminHeader())
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, envelope["success"])
		})
	}
	assert.Empty(t, f.catalog.products, "no invalid product may be stored")
}

func TestUpdateProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	body := `{"name":"Renamed","price":"9.99","unit":"box","stock":5}`
	w, _ := f.do(t, http.MethodPut, "admin/product", "id=1", body, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	_, envelope := f.do(t, http.MethodGet, "product", "id=1", "", "")
	p := data(t, envelope)["product"].(map[string]any)
	assert.Equal(t, "Renamed", p["name"])
}

func TestUpdateProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	body := `{"name":"X","price":"1.00","unit":"kg"}`
	w, _ := f.do(t, http.MethodPut, "admin/product", "id=7", body, adminHeader())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSoftDelete_Idempotence(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	w, _ := f.do(t, http.MethodDelete, "admin/product", "id=1", "", adminHeader())
	require.Equal(t, http.StatusOK, w.Code)

	// Deleting an already-inactive product is a not-found outcome, not a
	// second successful deletion.
	w, _ = f.do(t, http.MethodDelete, "admin/product", "id=1", "", adminHeader())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Orders ---

func TestSubmitOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(2)

	body := `{"items":[{"id":1,"qty":2,"price":"2.50"},{"id":2,"qty":1,"price":"2.50"}],"phone":"+31 6 1234 5678"}`
	w, envelope := f.do(t, http.MethodPost, "order", "", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	d := data(t, envelope)
	assert.Equal(t, float64(1), d["order_id"])
	assert.Equal(t, "pending", d["status"])
	require.Len(t, f.orders.orders, 1)
	assert.True(t, decimal.RequireFromString("7.50").Equal(f.orders.orders[0].Total))
}

func TestSubmitOrder_InvalidCart(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	tests := map[string]string{
		"empty body":     "",
		"no items":       `{"items":[]}`,
		"zero qty":       `{"items":[{"id":1,"qty":0,"price":"2.50"}]}`,
		"negative qty":   `{"items":[{"id":1,"qty":-1,"price":"2.50"}]}`,
		"negative price": `{"items":[{"id":1,"qty":1,"price":"-0.01"}]}`,
		"zero id":        `{"items":[{"id":0,"qty":1,"price":"2.50"}]}`,
		"bad phone":      `{"items":[{"id":1,"qty":1,"price":"2.50"}],"phone":"12345"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w, envelope := f.do(t, http.MethodPost, "order", "", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, envelope["success"])
		})
	}
	assert.Empty(t, f.orders.orders, "invalid carts must not create order rows")
}

func TestSubmitOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	body := `{"items":[{"id":42,"qty":1,"price":"2.50"}]}`
	w, _ := f.do(t, http.MethodPost, "order", "", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.orders.orders)
}

func TestRecentOrders(t *testing.T) {
	f := newFixture(t)
	f.seed(1)

	body := `{"items":[{"id":1,"qty":1,"price":"2.50"}]}`
	w, _ := f.do(t, http.MethodPost, "order", "", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	_, envelope := f.do(t, http.MethodGet, "admin/orders", "", "", adminHeader())
	assert.Equal(t, float64(1), data(t, envelope)["count"])
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)

	_, envelope := f.do(t, http.MethodGet, "admin/analytics", "days=30&detailed=true", "", adminHeader())
	stats := data(t, envelope)["analytics"].(map[string]any)
	assert.Equal(t, float64(30), stats["days"])
	assert.Contains(t, stats, "by_day")
}

func TestAnalytics_DaysOutOfRange(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "admin/analytics", "days=0", "", adminHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodGet, "admin/analytics", "days=366", "", adminHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health ---

func TestHealth_PublicOmitsDetail(t *testing.T) {
	f := newFixture(t)

	_, envelope := f.do(t, http.MethodGet, "health", "", "", "")
	d := data(t, envelope)
	assert.Equal(t, "ok", d["status"])
	assert.NotContains(t, d, "product_count", "public variant omits sensitive detail")
	assert.NotContains(t, d, "tables")
}

func TestHealth_AdminIncludesLimiterStats(t *testing.T) {
	f := newFixture(t)

	_, envelope := f.do(t, http.MethodGet, "admin/health", "", "", adminHeader())
	d := data(t, envelope)
	assert.Contains(t, d, "store")
	assert.Contains(t, d, "rate_limiter")
	assert.Contains(t, d, "config_warnings")
}

// --- Rate limiting ---

func TestRateLimit_Exceeded(t *testing.T) {
	catalog := &fakeCatalog{}
	orders := &fakeOrders{}
	gw := New(Config{},
		catalog,
		order.NewService(catalog, orders),
		orders,
		&fakeChecker{d: &postgres.Diagnostic{Database: true, Writable: true}},
		ratelimit.New(2, time.Hour),
		cache.New(5*time.Minute),
		auth.NewGuard(adminUser, adminPass),
	)

	for i := range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api?endpoint=products", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		w := httptest.NewRecorder()
		gw.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d within quota", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/api?endpoint=products", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope["success"])
	assert.Contains(t, envelope["error"], "rate limit")

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/api?endpoint=products", nil)
	req.RemoteAddr = "203.0.113.99:1000"
	w = httptest.NewRecorder()
	gw.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Failure detail suppression ---

func TestStoreFailure_DetailSuppressed(t *testing.T) {
	f := newFixture(t)
	f.catalog.failAll = errors.New("pq: connection refused on host db-internal")

	w, envelope := f.do(t, http.MethodGet, "product", "id=1", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", envelope["error"])
	assert.NotContains(t, w.Body.String(), "db-internal")
}

func TestStoreFailure_DetailInDebugMode(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Debug = true })
	f.catalog.failAll = errors.New("pq: connection refused on host db-internal")

	_, envelope := f.do(t, http.MethodGet, "product", "id=1", "", "")
	assert.Contains(t, envelope["detail"], "db-internal")
}
