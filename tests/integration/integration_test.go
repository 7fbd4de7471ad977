//go:build integration

// Package integration exercises the PostgreSQL repositories against a real
// database started with testcontainers.
package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/orderflow/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orderflow"),
		tcpostgres.WithUsername("orderflow"),
		tcpostgres.WithPassword("orderflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(pgc); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	connStr, err := pgc.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = repository.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

// seedProduct inserts or resets a product with the given stock fully
// available.
func seedProduct(t *testing.T, id string, price string, stock int, active bool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, name, price, stock, available_stock, active)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			available_stock = EXCLUDED.available_stock,
			active = EXCLUDED.active`,
		id, "product "+id, decimal.RequireFromString(price), stock, active,
	)
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func availableStock(t *testing.T, productID string) int {
	t.Helper()

	var available int
	err := pool.QueryRow(context.Background(),
		`SELECT available_stock FROM products WHERE id = $1`, productID,
	).Scan(&available)
	if err != nil {
		t.Fatalf("query available stock for %s: %v", productID, err)
	}
	return available
}

var testOrderSeq int

// newOrderID yields process-unique order ids so tests can share the database.
func newOrderID(t *testing.T) string {
	t.Helper()
	testOrderSeq++
	return fmt.Sprintf("%s-%d-%d", t.Name(), testOrderSeq, time.Now().UnixNano())
}
