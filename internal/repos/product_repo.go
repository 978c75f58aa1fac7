package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"bodega/internal/domain"
)

type ProductRepo struct{ db DBTX }

func NewProductRepo(db DBTX) *ProductRepo { return &ProductRepo{db: db} }

// WithTx returns a copy bound to tx.
func (r *ProductRepo) WithTx(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

const productCols = `id, name, price, stock`

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO products(name, price, stock, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, p.Name, p.Price.StringFixed(2), p.Stock)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, &domain.NotFoundError{Kind: "product", ID: id}
	}
	return p, err
}

// Search filters by a case-insensitive substring of the name; an empty q
// matches everything.
func (r *ProductRepo) Search(ctx context.Context, q string, limit, offset int) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+productCols+`
		FROM products
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE, id
		LIMIT ? OFFSET ?
	`, containsPattern(q), limit, offset)
	return out, err
}

func (r *ProductRepo) Count(ctx context.Context, q string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM products WHERE LOWER(name) LIKE ? ESCAPE '\'
	`, containsPattern(q))
	return n, err
}

// All returns every product ordered by name (chart feed).
func (r *ProductRepo) All(ctx context.Context) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+productCols+` FROM products ORDER BY name COLLATE NOCASE, id
	`)
	return out, err
}

// Update replaces name, price and stock.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.Price.StringFixed(2), p.Stock, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "product", ID: p.ID}
	}
	return nil
}

// Decrement subtracts "by" units only if enough stock exists. Inside a
// transaction this is the point that prevents overdraw.
func (r *ProductRepo) Decrement(ctx context.Context, id int64, by int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, by, id, by)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		p, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: by}
	}
	return nil
}

// DeleteCascade removes the product's sale lines, then the product. Run it
// on a tx-bound repo so both deletes commit together.
func (r *ProductRepo) DeleteCascade(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE product_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "product", ID: id}
	}
	return nil
}

func (r *ProductRepo) LowStockCount(ctx context.Context, threshold int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products WHERE stock < ?`, threshold)
	return n, err
}
