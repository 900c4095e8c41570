package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmarkhas/greengrocer/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (items, phone, total, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	orderCreatedAtSQL = `SELECT created_at FROM orders WHERE id = $1`

	recentOrdersSQL = `SELECT id, items, phone, total, status, notes, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	analyticsSQL = `SELECT count(*),
			coalesce(sum(total), 0),
			coalesce(avg(total), 0)
		FROM orders
		WHERE created_at >= now() - make_interval(days => $1)`

	analyticsByStatusSQL = `SELECT status, count(*)
		FROM orders
		WHERE created_at >= now() - make_interval(days => $1)
		GROUP BY status`

	analyticsByDaySQL = `SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD'),
			count(*),
			coalesce(sum(total), 0)
		FROM orders
		WHERE created_at >= now() - make_interval(days => $1)
		GROUP BY 1
		ORDER BY 1 DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order inside a transaction. The cart items are
// serialized to JSON for the JSONB column; the id-returning insert and the
// follow-up read of created_at are wrapped together so a failure rolls back
// the insert and never leaves an orphaned row.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return 0, fmt.Errorf("marshaling cart items: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning order transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var id int64
	err = tx.QueryRow(ctx, createOrderSQL,
		itemsJSON, o.Phone, o.Total, o.Status, o.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating order: %w", err)
	}

	if err := tx.QueryRow(ctx, orderCreatedAtSQL, id).Scan(&o.CreatedAt); err != nil {
		return 0, fmt.Errorf("reading back order %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing order %d: %w", id, err)
	}
	o.ID = id
	return id, nil
}

// Recent returns the newest orders first.
func (r *OrderRepository) Recent(ctx context.Context, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, recentOrdersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Analytics aggregates orders over the trailing days window. The per-day
// breakdown requires an extra query and is computed only when detailed is set.
func (r *OrderRepository) Analytics(ctx context.Context, days int, detailed bool) (*order.Stats, error) {
	s := &order.Stats{
		Days:     days,
		ByStatus: make(map[order.Status]int64),
	}
	err := r.pool.QueryRow(ctx, analyticsSQL, days).Scan(&s.Orders, &s.Revenue, &s.AverageTotal)
	if err != nil {
		return nil, fmt.Errorf("aggregating orders: %w", err)
	}
	s.Revenue = s.Revenue.Round(2)
	s.AverageTotal = s.AverageTotal.Round(2)

	rows, err := r.pool.Query(ctx, analyticsByStatusSQL, days)
	if err != nil {
		return nil, fmt.Errorf("aggregating order statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		s.ByStatus[order.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading status rows: %w", err)
	}

	if !detailed {
		return s, nil
	}

	dayRows, err := r.pool.Query(ctx, analyticsByDaySQL, days)
	if err != nil {
		return nil, fmt.Errorf("aggregating orders by day: %w", err)
	}
	s.ByDay, err = pgx.CollectRows(dayRows, func(row pgx.CollectableRow) (order.DayStats, error) {
		var d order.DayStats
		var revenue decimal.Decimal
		err := row.Scan(&d.Day, &d.Orders, &revenue)
		d.Revenue = revenue.Round(2)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting day rows: %w", err)
	}
	return s, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	err := row.Scan(&o.ID, &itemsJSON, &o.Phone, &o.Total, &o.Status, &o.Notes, &o.CreatedAt)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %d: %w", o.ID, err)
	}
	return o, nil
}
