// Package gateway composes authentication, rate limiting, validation,
// caching, and storage behind a single HTTP entry point. The logical
// operation is selected by the endpoint parameter plus the HTTP method;
// every request passes through the same stage order and any stage may
// short-circuit to an error response.
package gateway

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/singleflight"

	"github.com/dmarkhas/greengrocer/internal/auth"
	"github.com/dmarkhas/greengrocer/internal/cache"
	"github.com/dmarkhas/greengrocer/internal/domain/order"
	"github.com/dmarkhas/greengrocer/internal/domain/product"
	"github.com/dmarkhas/greengrocer/internal/ratelimit"
	"github.com/dmarkhas/greengrocer/internal/storage/postgres"
	"github.com/dmarkhas/greengrocer/internal/validate"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultDays     = 7
	maxDays         = 365
)

// StoreChecker runs the store-level diagnostic used by the health routes.
type StoreChecker interface {
	Check(ctx context.Context) (*postgres.Diagnostic, error)
}

// Config holds non-dependency gateway settings.
type Config struct {
	// Debug enables extended detail in error envelopes. Never enable in
	// production.
	Debug bool
	// Warnings lists configuration validation notes surfaced by the admin
	// health route.
	Warnings []string
}

type routeKey struct {
	method   string
	endpoint string
}

type handlerFunc func(ctx context.Context, r *http.Request) (any, error)

type route struct {
	handle handlerFunc
	admin  bool
}

// Gateway is the request router. All shared mutable state lives in the
// injected limiter and cache; the Gateway itself spawns no background work.
type Gateway struct {
	products product.Repository
	orders   *order.Service
	history  order.Repository
	checker  StoreChecker

	limiter *ratelimit.Limiter
	cache   *cache.Cache
	guard   *auth.Guard

	debug    bool
	warnings []string

	routes   map[routeKey]route
	catalog  []string
	inflight singleflight.Group
}

// New wires a Gateway from its collaborators and builds the route table.
func New(
	cfg Config,
	products product.Repository,
	orders *order.Service,
	history order.Repository,
	checker StoreChecker,
	limiter *ratelimit.Limiter,
	responseCache *cache.Cache,
	guard *auth.Guard,
) *Gateway {
	g := &Gateway{
		products: products,
		orders:   orders,
		history:  history,
		checker:  checker,
		limiter:  limiter,
		cache:    responseCache,
		guard:    guard,
		debug:    cfg.Debug,
		warnings: cfg.Warnings,
	}

	g.routes = map[routeKey]route{
		{http.MethodGet, "products"}:       {g.listProducts, false},
		{http.MethodGet, "product"}:        {g.getProduct, false},
		{http.MethodPost, "order"}:         {g.submitOrder, false},
		{http.MethodGet, "health"}:         {g.health, false},
		{http.MethodGet, "admin/products"}: {g.adminListProducts, true},
		{http.MethodPost, "admin/product"}: {g.createProduct, true},
		{http.MethodPut, "admin/product"}:  {g.updateProduct, true},
		{http.MethodDelete, "admin/product"}: {g.softDeleteProduct, true},
		{http.MethodGet, "admin/orders"}:    {g.recentOrders, true},
		{http.MethodGet, "admin/analytics"}: {g.analytics, true},
		{http.MethodGet, "admin/health"}:    {g.adminHealth, true},
	}

	for key := range g.routes {
		g.catalog = append(g.catalog, key.method+" "+key.endpoint)
	}
	sort.Strings(g.catalog)
	return g
}

// ServeHTTP runs the request through the gateway stages: rate limit, route
// match, auth (admin routes), then the handler. Once a response is written
// no further stage executes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	verdict := g.limiter.Allow(ratelimit.ClientKey(r))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(g.limiter.Threshold()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
	if !verdict.Allowed {
		retry := int(verdict.RetryAfter.Seconds() + 1)
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		g.writeError(w, start, http.StatusTooManyRequests, "rate limit exceeded", "", nil)
		return
	}

	endpoint := validate.SanitizeEndpoint(r.URL.Query().Get("endpoint"))
	rt, ok := g.routes[routeKey{r.Method, endpoint}]
	if !ok {
		g.writeError(w, start, http.StatusNotFound, "unknown endpoint", "",
			func(e *jx.Encoder) {
				e.FieldStart("endpoints")
				e.ArrStart()
				for _, ep := range g.catalog {
					e.Str(ep)
				}
				e.ArrEnd()
			})
		return
	}

	if rt.admin && !g.guard.Check(r.Header.Get("Authorization")) {
		g.writeError(w, start, http.StatusUnauthorized, "authentication required", "", nil)
		return
	}

	data, err := rt.handle(r.Context(), r)
	if err != nil {
		g.writeFailure(r.Context(), w, start, err)
		return
	}
	g.writeSuccess(w, start, data)
}
