package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Stock    int             `json:"stock"`
	Active   bool            `json:"active"`
}

type discountSeed struct {
	code          string
	percentOff    decimal.Decimal
	minOrderValue *decimal.Decimal
	maxDiscount   *decimal.Decimal
	usageLimit    int
	validUntil    *time.Time
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, category, stock, available_stock, active)
VALUES ($1, $2, $3, $4, $5, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name     = EXCLUDED.name,
    price    = EXCLUDED.price,
    category = EXCLUDED.category,
    stock    = EXCLUDED.stock,
    active   = EXCLUDED.active
`

const upsertDiscountSQL = `
INSERT INTO discount_codes (code, percent_off, min_order_value, max_discount, usage_limit, valid_until, active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (code) DO UPDATE SET
    percent_off     = EXCLUDED.percent_off,
    min_order_value = EXCLUDED.min_order_value,
    max_discount    = EXCLUDED.max_discount,
    usage_limit     = EXCLUDED.usage_limit,
    valid_until     = EXCLUDED.valid_until,
    active          = TRUE
`

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discount codes")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Category, p.Stock, p.Active,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding baseline discount codes")

	cap50 := decimal.NewFromInt(50)
	cap150 := decimal.NewFromInt(150)
	min500 := decimal.NewFromInt(500)
	nextMonth := time.Now().AddDate(0, 1, 0).Truncate(time.Hour)

	seeds := []discountSeed{
		{code: "WELCOME10", percentOff: decimal.NewFromInt(10), maxDiscount: &cap50},
		{code: "SAVE15", percentOff: decimal.NewFromInt(15), minOrderValue: &min500, maxDiscount: &cap150},
		{code: "FLASH25", percentOff: decimal.NewFromInt(25), usageLimit: 1000, validUntil: &nextMonth},
	}

	for _, d := range seeds {
		if _, err := pool.Exec(ctx, upsertDiscountSQL,
			d.code, d.percentOff, d.minOrderValue, d.maxDiscount, d.usageLimit, d.validUntil,
		); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.code)
		}

		slog.Info("upserted discount", slog.String("code", d.code))
	}

	return nil
}
