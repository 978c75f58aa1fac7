package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "bodega/internal/log"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite has a single writer anyway, this keeps sale
	// transactions strictly serialized and lets ":memory:" survive across calls.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;

-- Products
CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL CHECK (length(trim(name)) > 0),
  price TEXT NOT NULL CHECK (CAST(price AS REAL) >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(LOWER(name));

-- Sales (header)
CREATE TABLE IF NOT EXISTS sales(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  created_at TEXT NOT NULL,
  total TEXT NOT NULL CHECK (CAST(total AS REAL) >= 0),
  customer_name TEXT NOT NULL DEFAULT '',
  customer_tax_id TEXT NOT NULL DEFAULT '',
  invoice_status TEXT NOT NULL DEFAULT 'NOT_REQUESTED'
    CHECK (invoice_status IN ('NOT_REQUESTED','PENDING','SUCCEEDED','FAILED')),
  invoice_series TEXT NOT NULL DEFAULT '',
  invoice_number TEXT NOT NULL DEFAULT '',
  invoice_url TEXT NOT NULL DEFAULT '',
  invoice_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sales_at ON sales(julianday(created_at));

-- Sale lines; removed explicitly before their product is deleted
CREATE TABLE IF NOT EXISTS sale_lines(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sale_id INTEGER NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sale_lines_sale    ON sale_lines(sale_id);
CREATE INDEX IF NOT EXISTS idx_sale_lines_product ON sale_lines(product_id);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

// SeedAdmin ensures the bootstrap account exists (idempotent). An existing
// account keeps its password.
func SeedAdmin(db *sqlx.DB, username, password string) error {
	if username == "" || password == "" {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
			return err
		}
		if n == 0 {
			applog.Security(nil, "seed.admin.skipped", map[string]any{"reason": "ADMIN_PASSWORD not set"})
		}
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO users(id, username, password_hash)
		VALUES(?, ?, ?)
		ON CONFLICT DO NOTHING
	`, uuid.NewString(), username, string(h))
	return err
}

type seedProduct struct {
	Name  string
	Price string
	Stock int
}

var demoCatalog = []seedProduct{
	{"Coca Cola 3L", "12.50", 50},
	{"Inca Kola 1.5L", "7.50", 35},
	{"Agua Cielo 1L", "2.50", 80},
	{"Cerveza Pilsen 650ml", "7.00", 120},
	{"Arroz Costeño 1kg", "4.80", 200},
	{"Azúcar Rubia Cartavio", "3.80", 100},
	{"Aceite Primor 1L", "11.50", 60},
	{"Fideos Don Vittorio", "3.20", 90},
	{"Atún Florida Trozos", "6.50", 70},
	{"Leche Gloria Azul", "4.20", 150},
	{"Galletas Oreo Paq.", "1.50", 200},
	{"Papel Higiénico Suave (4un)", "5.50", 80},
	{"Detergente Ace 500g", "5.50", 50},
	{"Shampoo H&S", "18.90", 4},
	{"Pan Bimbo Blanco", "8.50", 3},
}

// SeedDemoCatalog inserts demo products that are not present yet, matched
// by name. Safe to run on every startup.
func SeedDemoCatalog(db *sqlx.DB) (int, error) {
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	added := 0
	for _, p := range demoCatalog {
		res, err := tx.Exec(`
			INSERT INTO products(name, price, stock, created_at)
			SELECT ?, ?, ?, CURRENT_TIMESTAMP
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE LOWER(name) = LOWER(?))
		`, p.Name, p.Price, p.Stock, p.Name)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if added > 0 {
		applog.Info(nil, "seed.catalog", map[string]any{"added": added})
	}
	return added, nil
}

// Backup writes a consistent copy of the store to dest, which must not exist.
func Backup(ctx context.Context, db *sqlx.DB, dest string) error {
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("backup to %s: %w", dest, err)
	}
	return nil
}
