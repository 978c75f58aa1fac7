package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bodega/internal/domain"
)

type SaleRepo struct{ db DBTX }

func NewSaleRepo(db DBTX) *SaleRepo { return &SaleRepo{db: db} }

func (r *SaleRepo) WithTx(tx *sqlx.Tx) *SaleRepo { return &SaleRepo{db: tx} }

const saleCols = `id, created_at, total, customer_name, customer_tax_id,
	invoice_status, invoice_series, invoice_number, invoice_url, invoice_error`

// ---------- Writes used by the sale workflow ----------

// CreateHeader inserts a sale header and returns its id.
func (r *SaleRepo) CreateHeader(ctx context.Context, s domain.Sale) (int64, error) {
	status := s.Status
	if status == "" {
		status = domain.InvoiceNotRequested
	}
	res, err := r.db.ExecContext(ctx, `
	  INSERT INTO sales
	    (created_at, total, customer_name, customer_tax_id, invoice_status)
	  VALUES
	    (?,          ?,     ?,             ?,               ?)
	`, s.CreatedAt, s.Total.StringFixed(2), s.CustomerName, s.CustomerTaxID, string(status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertLine inserts a single line item.
func (r *SaleRepo) InsertLine(ctx context.Context, l domain.SaleLine) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	  INSERT INTO sale_lines(sale_id, product_id, quantity, unit_price)
	  VALUES(?, ?, ?, ?)
	`, l.SaleID, l.ProductID, l.Quantity, l.UnitPrice.StringFixed(2))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetCustomer attaches customer data and the initial invoicing state to a
// committed sale.
func (r *SaleRepo) SetCustomer(ctx context.Context, id int64, name, taxID string, inv domain.Invoicing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales
		SET customer_name = ?, customer_tax_id = ?,
		    invoice_status = ?, invoice_series = ?, invoice_number = ?, invoice_url = ?, invoice_error = ?
		WHERE id = ?
	`, name, taxID, string(inv.Status), inv.Series, inv.Correlative, inv.URL, inv.Reason, id)
	return affectedOne(res, err, id)
}

// SetInvoicing records the outcome of the invoicing step.
func (r *SaleRepo) SetInvoicing(ctx context.Context, id int64, inv domain.Invoicing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales
		SET invoice_status = ?, invoice_series = ?, invoice_number = ?, invoice_url = ?, invoice_error = ?
		WHERE id = ?
	`, string(inv.Status), inv.Series, inv.Correlative, inv.URL, inv.Reason, id)
	return affectedOne(res, err, id)
}

func affectedOne(res sql.Result, err error, id int64) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "sale", ID: id}
	}
	return nil
}

// ---------- Reads ----------

// Get returns a sale with its lines. Lines whose product was deleted are gone.
func (r *SaleRepo) Get(ctx context.Context, id int64) (domain.Sale, error) {
	var s domain.Sale
	if err := r.db.GetContext(ctx, &s, `SELECT `+saleCols+` FROM sales WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, &domain.NotFoundError{Kind: "sale", ID: id}
		}
		return domain.Sale{}, err
	}

	lines, err := r.Lines(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	s.Lines = lines
	return s, nil
}

func (r *SaleRepo) Lines(ctx context.Context, saleID int64) ([]domain.SaleLine, error) {
	lines := []domain.SaleLine{}
	err := r.db.SelectContext(ctx, &lines, `
		SELECT sl.id, sl.sale_id, sl.product_id, COALESCE(p.name, '') AS product_name,
		       sl.quantity, sl.unit_price
		FROM sale_lines sl
		LEFT JOIN products p ON p.id = sl.product_id
		WHERE sl.sale_id = ?
		ORDER BY sl.id
	`, saleID)
	return lines, err
}

// LinesByProduct lists every line that references a product.
func (r *SaleRepo) LinesByProduct(ctx context.Context, productID int64) ([]domain.SaleLine, error) {
	lines := []domain.SaleLine{}
	err := r.db.SelectContext(ctx, &lines, `
		SELECT sl.id, sl.sale_id, sl.product_id, COALESCE(p.name, '') AS product_name,
		       sl.quantity, sl.unit_price
		FROM sale_lines sl
		LEFT JOIN products p ON p.id = sl.product_id
		WHERE sl.product_id = ?
		ORDER BY sl.id
	`, productID)
	return lines, err
}

// List returns sale headers newest first; limit <= 0 means all.
func (r *SaleRepo) List(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	out := []domain.Sale{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+saleCols+`
		FROM sales
		ORDER BY julianday(created_at) DESC, id DESC
		LIMIT ?
	`, limit)
	return out, err
}

func (r *SaleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sales`)
	return n, err
}

// Total sums every sale total with decimal arithmetic.
func (r *SaleRepo) Total(ctx context.Context) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	if err := r.db.SelectContext(ctx, &totals, `SELECT total FROM sales`); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}
