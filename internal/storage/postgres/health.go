package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Diagnostic is the result of a storefront-level store health check.
// The public health endpoint strips it down via Sanitized.
type Diagnostic struct {
	Database     bool            `json:"database"`
	Tables       map[string]bool `json:"tables"`
	ProductCount int64           `json:"product_count"`
	OrderCount   int64           `json:"order_count"`
	Writable     bool            `json:"writable"`
	ElapsedMS    float64         `json:"elapsed_ms"`
	Detail       string          `json:"detail,omitempty"`
}

// OK reports whether every probed capability is healthy.
func (d *Diagnostic) OK() bool {
	if !d.Database || !d.Writable {
		return false
	}
	for _, present := range d.Tables {
		if !present {
			return false
		}
	}
	return true
}

// Sanitized returns the public view of the diagnostic: overall status only,
// with table names, row counts, and error detail omitted.
func (d *Diagnostic) Sanitized() map[string]any {
	status := "ok"
	if !d.OK() {
		status = "degraded"
	}
	return map[string]any{
		"status":   status,
		"database": d.Database,
		"writable": d.Writable,
	}
}

// Checker runs store diagnostics for the health endpoints.
type Checker struct {
	pool *pgxpool.Pool
}

// NewChecker returns a Checker that uses the given pool.
func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{pool: pool}
}

// Check probes connectivity, table existence, row counts, and write
// capability. The write probe runs inside a rolled-back transaction against
// a temporary table, so it leaves no trace.
func (c *Checker) Check(ctx context.Context) (*Diagnostic, error) {
	start := time.Now()
	d := &Diagnostic{Tables: make(map[string]bool)}

	if err := c.pool.Ping(ctx); err != nil {
		d.Detail = err.Error()
		d.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
		return d, nil
	}
	d.Database = true

	for _, table := range []string{"products", "orders"} {
		var regclass *string
		err := c.pool.QueryRow(ctx, `SELECT to_regclass('public.' || $1)::text`, table).Scan(&regclass)
		d.Tables[table] = err == nil && regclass != nil
	}

	if d.Tables["products"] {
		_ = c.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&d.ProductCount)
	}
	if d.Tables["orders"] {
		_ = c.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&d.OrderCount)
	}

	d.Writable = c.checkWritable(ctx, d)
	d.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
	return d, nil
}

func (c *Checker) checkWritable(ctx context.Context, d *Diagnostic) bool {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		d.Detail = err.Error()
		return false
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is the point

	if _, err := tx.Exec(ctx, `CREATE TEMPORARY TABLE _health_probe (id int) ON COMMIT DROP`); err != nil {
		d.Detail = err.Error()
		return false
	}
	if _, err := tx.Exec(ctx, `INSERT INTO _health_probe (id) VALUES (1)`); err != nil {
		d.Detail = err.Error()
		return false
	}
	return true
}
