package services

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bodega/internal/domain"
	applog "bodega/internal/log"
	"bodega/internal/repos"
)

// InvoiceSubmitter issues a tax document for a committed sale.
type InvoiceSubmitter interface {
	SubmitInvoice(ctx context.Context, sale domain.Sale) (domain.InvoiceRef, error)
}

type SaleRequest struct {
	ProductID     int64  `validate:"gt=0"`
	Quantity      int    `validate:"gt=0"`
	CustomerName  string `validate:"max=100"`
	CustomerTaxID string `validate:"omitempty,number,max=15"`
}

type SaleReceipt struct {
	Sale           domain.Sale
	RemainingStock int
}

type SaleService struct {
	DB       *sqlx.DB
	Products *repos.ProductRepo
	Sales    *repos.SaleRepo
	Invoices InvoiceSubmitter // nil when invoicing is off
	Location *time.Location
	Now      func() time.Time
}

func NewSaleService(db *sqlx.DB, invoices InvoiceSubmitter, loc *time.Location) *SaleService {
	if loc == nil {
		loc = time.UTC
	}
	return &SaleService{
		DB:       db,
		Products: repos.NewProductRepo(db),
		Sales:    repos.NewSaleRepo(db),
		Invoices: invoices,
		Location: loc,
		Now:      time.Now,
	}
}

// RecordSale sells Quantity units of a product. The header, the line and the
// stock decrement commit together; customer attachment and invoicing happen
// afterwards and never fail the sale.
func (s *SaleService) RecordSale(ctx context.Context, req SaleRequest) (SaleReceipt, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerTaxID = strings.TrimSpace(req.CustomerTaxID)
	if err := checkInput(req); err != nil {
		return SaleReceipt{}, err
	}

	var (
		sale      domain.Sale
		remaining int
	)
	err := repos.RunInTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		products := s.Products.WithTx(tx)
		sales := s.Sales.WithTx(tx)

		p, err := products.Get(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if req.Quantity > p.Stock {
			return &domain.InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: req.Quantity}
		}

		sale = domain.Sale{
			CreatedAt: s.Now().UTC().Format(time.RFC3339),
			Total:     p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Invoicing: domain.NotRequested(),
		}
		if sale.ID, err = sales.CreateHeader(ctx, sale); err != nil {
			return err
		}

		line := domain.SaleLine{
			SaleID:      sale.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    req.Quantity,
			UnitPrice:   p.Price,
		}
		if line.ID, err = sales.InsertLine(ctx, line); err != nil {
			return err
		}

		// guarded: a concurrent sale that got here first turns this into
		// InsufficientStock and the whole tx rolls back
		if err := products.Decrement(ctx, p.ID, req.Quantity); err != nil {
			return err
		}

		sale.Lines = []domain.SaleLine{line}
		remaining = p.Stock - req.Quantity
		return nil
	})
	if err != nil {
		if domain.IsClientError(err) || domain.IsNotFound(err) {
			return SaleReceipt{}, err
		}
		return SaleReceipt{}, &domain.TransactionError{Op: "record sale", Err: err}
	}

	sale = sale.InZone(s.Location)
	receipt := SaleReceipt{Sale: sale, RemainingStock: remaining}
	if req.CustomerName != "" || req.CustomerTaxID != "" {
		receipt.Sale = s.settle(context.WithoutCancel(ctx), sale, req.CustomerName, req.CustomerTaxID)
	}
	return receipt, nil
}

// settle attaches the customer and runs the invoicing call. It returns the
// sale as persisted; failures are logged only.
func (s *SaleService) settle(ctx context.Context, sale domain.Sale, name, taxID string) domain.Sale {
	fields := map[string]any{"sale_id": sale.ID}

	state := domain.NotRequested()
	if s.Invoices != nil {
		state = domain.Pending()
	}
	if err := s.Sales.SetCustomer(ctx, sale.ID, name, taxID, state); err != nil {
		applog.Error(nil, "sale.customer.attach", err, fields)
		return sale
	}
	sale.CustomerName, sale.CustomerTaxID = name, taxID
	sale.Invoicing = state
	if s.Invoices == nil {
		return sale
	}

	ref, err := s.Invoices.SubmitInvoice(ctx, sale)
	if err != nil {
		applog.Warn(nil, "invoice.submit.failed", err, fields)
		state = domain.Failed(err.Error())
	} else {
		state = domain.Succeeded(ref)
		fields["invoice"] = ref.Number
		applog.Info(nil, "invoice.submit.ok", fields)
	}

	if err := s.Sales.SetInvoicing(ctx, sale.ID, state); err != nil {
		// stays PENDING in the store
		applog.Error(nil, "invoice.state.persist", err, fields)
		return sale
	}
	sale.Invoicing = state
	return sale
}

func (s *SaleService) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.Sales.Get(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return sale.InZone(s.Location), nil
}

// ListSales returns sales newest first; limit <= 0 means all.
func (s *SaleService) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	sales, err := s.Sales.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return domain.SalesInZone(sales, s.Location), nil
}
