package services_test

import (
	"context"
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bodega/internal/domain"
	applog "bodega/internal/log"
	"bodega/internal/repos"
	"bodega/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	applog.SetOutput(io.Discard)
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addProduct(t *testing.T, db *sqlx.DB, name, price string, stock int) domain.Product {
	t.Helper()
	p, err := services.NewCatalogService(db).Create(context.Background(), services.ProductInput{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, db *sqlx.DB, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT stock FROM products WHERE id = ?`, id))
	return n
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}
