// Command seed-db populates an empty catalog with demo products for local
// development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dmarkhas/greengrocer/internal/domain/product"
	"github.com/dmarkhas/greengrocer/internal/storage/postgres"
)

var demoProducts = []product.Fields{
	{Name: "Tomatoes", Price: decimal.RequireFromString("3.50"), Unit: product.UnitKg, Stock: 120, SortOrder: 1},
	{Name: "Cucumbers", Price: decimal.RequireFromString("2.20"), Unit: product.UnitKg, Stock: 80, SortOrder: 2},
	{Name: "Basmati Rice", Price: decimal.RequireFromString("6.90"), Unit: product.UnitPacket, Stock: 45, SortOrder: 3},
	{Name: "Olive Oil", Price: decimal.RequireFromString("12.00"), Unit: product.UnitLiter, Stock: 30, SortOrder: 4},
	{Name: "Free-Range Eggs", Price: decimal.RequireFromString("5.40"), Unit: product.UnitBox, Stock: 60, SortOrder: 5},
	{Name: "Saffron", Price: decimal.RequireFromString("4.80"), Unit: product.UnitGram, Stock: 200, SortOrder: 6},
	{Name: "Watermelon", Price: decimal.RequireFromString("7.00"), Unit: product.UnitPiece, Stock: 25, SortOrder: 7},
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var count int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return errors.Wrap(err, "count products")
	}
	if count > 0 {
		slog.Info("catalog already seeded", slog.Int64("products", count))
		return nil
	}

	repo := postgres.NewProductRepository(pool)
	for _, f := range demoProducts {
		id, err := repo.Create(ctx, f)
		if err != nil {
			return errors.Wrapf(err, "create product %q", f.Name)
		}
		slog.Info("created product", slog.Int64("id", id), slog.String("name", f.Name))
	}
	return nil
}
