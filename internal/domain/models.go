package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold flags products on the dashboard and drives StockStatus.
const LowStockThreshold = 5

type Product struct {
	ID    int64           `db:"id" json:"id"`
	Name  string          `db:"name" json:"name"`
	Price decimal.Decimal `db:"price" json:"price"`
	Stock int             `db:"stock" json:"stock"`
}

// Availability is the stock badge shown next to a product.
type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

type InvoiceStatus string

const (
	InvoiceNotRequested InvoiceStatus = "NOT_REQUESTED"
	InvoicePending      InvoiceStatus = "PENDING"
	InvoiceSucceeded    InvoiceStatus = "SUCCEEDED"
	InvoiceFailed       InvoiceStatus = "FAILED"
)

// Invoicing is the tagged invoicing state of a sale. Series, Correlative and
// URL are only meaningful when Status is SUCCEEDED; Reason only when FAILED.
type Invoicing struct {
	Status      InvoiceStatus `db:"invoice_status" json:"status"`
	Series      string        `db:"invoice_series" json:"series,omitempty"`
	Correlative string        `db:"invoice_number" json:"correlative,omitempty"`
	URL         string        `db:"invoice_url" json:"url,omitempty"`
	Reason      string        `db:"invoice_error" json:"reason,omitempty"`
}

func NotRequested() Invoicing { return Invoicing{Status: InvoiceNotRequested} }
func Pending() Invoicing      { return Invoicing{Status: InvoicePending} }

func Succeeded(ref InvoiceRef) Invoicing {
	return Invoicing{Status: InvoiceSucceeded, Series: ref.Series, Correlative: ref.Correlative, URL: ref.URL}
}

func Failed(reason string) Invoicing {
	return Invoicing{Status: InvoiceFailed, Reason: reason}
}

// InvoiceRef identifies a document issued by the invoicing partner.
type InvoiceRef struct {
	Number      string `json:"number"` // e.g. F001-123
	Series      string `json:"series"`
	Correlative string `json:"correlative"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
}

type Sale struct {
	ID            int64           `db:"id" json:"id"`
	CreatedAt     string          `db:"created_at" json:"created_at"` // RFC3339, UTC
	Total         decimal.Decimal `db:"total" json:"total"`
	CustomerName  string          `db:"customer_name" json:"customer_name,omitempty"`
	CustomerTaxID string          `db:"customer_tax_id" json:"customer_tax_id,omitempty"`
	Invoicing     `json:"invoicing"`

	Lines []SaleLine `db:"-" json:"lines,omitempty"`

	zone *time.Location
}

// When parses CreatedAt into the shop's zone set by InZone; the zero time is
// returned for malformed rows.
func (s Sale) When() time.Time {
	t, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	if s.zone != nil {
		return t.In(s.zone)
	}
	return t
}

// InZone returns a copy of the sale whose When reports local shop time.
func (s Sale) InZone(loc *time.Location) Sale {
	s.zone = loc
	return s
}

func SalesInZone(sales []Sale, loc *time.Location) []Sale {
	for i := range sales {
		sales[i].zone = loc
	}
	return sales
}

func (s Sale) HasCustomer() bool { return s.CustomerName != "" || s.CustomerTaxID != "" }

type SaleLine struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
}

func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
