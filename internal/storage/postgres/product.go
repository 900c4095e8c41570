package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmarkhas/greengrocer/internal/domain/product"
)

const (
	productColumns = `id, name, price, description, image, unit, stock, active, sort_order, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE active OR $1
		ORDER BY sort_order, id
		LIMIT $2 OFFSET $3`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = $1 AND active`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1) AND active`

	createProductSQL = `INSERT INTO products (name, price, description, image, unit, stock, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	updateProductSQL = `UPDATE products
		SET name = $2, price = $3, description = $4, image = $5, unit = $6,
		    stock = $7, sort_order = $8, updated_at = now()
		WHERE id = $1 AND active`

	softDeleteProductSQL = `UPDATE products
		SET active = FALSE, updated_at = now()
		WHERE id = $1 AND active`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products ordered by sort order, filtered to active rows
// unless includeInactive is set.
func (r *ProductRepository) List(ctx context.Context, includeInactive bool, limit, offset int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, includeInactive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single active product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the active products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product row and returns its generated id.
func (r *ProductRepository) Create(ctx context.Context, f product.Fields) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, createProductSQL,
		f.Name, f.Price, f.Description, f.Image, f.Unit, f.Stock, f.SortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating product %q: %w", f.Name, err)
	}
	return id, nil
}

// Update overwrites the mutable fields of an active product.
func (r *ProductRepository) Update(ctx context.Context, id int64, f product.Fields) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		id, f.Name, f.Price, f.Description, f.Image, f.Unit, f.Stock, f.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("updating product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// SoftDelete marks an active product inactive. An already-inactive row is
// reported as not found rather than a second successful deletion.
func (r *ProductRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, softDeleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("soft-deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Unit,
		&p.Stock, &p.Active, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
