package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bodega/internal/domain"
	"bodega/internal/repos"
)

// PageSize is the fixed product list page size.
const PageSize = 10

type ProductInput struct {
	Name  string          `validate:"required,max=100"`
	Price decimal.Decimal `validate:"gte=0"`
	Stock int             `validate:"gte=0"`
}

type ProductRow struct {
	domain.Product
	Availability domain.Availability
}

type Page struct {
	Items      []ProductRow
	Query      string
	Page       int
	TotalPages int
	Total      int
}

func (p Page) HasPrev() bool { return p.Page > 1 }
func (p Page) HasNext() bool { return p.Page < p.TotalPages }
func (p Page) Prev() int      { return p.Page - 1 }
func (p Page) Next() int      { return p.Page + 1 }

type CatalogService struct {
	DB    *sqlx.DB
	Prods *repos.ProductRepo
}

func NewCatalogService(db *sqlx.DB) *CatalogService {
	return &CatalogService{DB: db, Prods: repos.NewProductRepo(db)}
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Price = in.Price.Round(2)
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	in.normalize()
	if err := checkInput(in); err != nil {
		return domain.Product{}, err
	}
	p := domain.Product{Name: in.Name, Price: in.Price, Stock: in.Stock}
	id, err := s.Prods.Create(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	p.ID = id
	return p, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.Prods.Get(ctx, id)
}

// List filters by a case-insensitive name substring and pages by PageSize.
// Out of range pages are clamped.
func (s *CatalogService) List(ctx context.Context, q string, page int) (Page, error) {
	q = strings.TrimSpace(q)
	total, err := s.Prods.Count(ctx, q)
	if err != nil {
		return Page{}, err
	}
	pages := (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	items, err := s.Prods.Search(ctx, q, PageSize, (page-1)*PageSize)
	if err != nil {
		return Page{}, err
	}
	rows := make([]ProductRow, 0, len(items))
	for _, p := range items {
		rows = append(rows, ProductRow{Product: p, Availability: StockStatus(p.Stock)})
	}
	return Page{Items: rows, Query: q, Page: page, TotalPages: pages, Total: total}, nil
}

// Update replaces name, price and stock.
func (s *CatalogService) Update(ctx context.Context, id int64, in ProductInput) (domain.Product, error) {
	in.normalize()
	if err := checkInput(in); err != nil {
		return domain.Product{}, err
	}
	p := domain.Product{ID: id, Name: in.Name, Price: in.Price, Stock: in.Stock}
	if err := s.Prods.Update(ctx, p); err != nil {
		if domain.IsNotFound(err) {
			return domain.Product{}, err
		}
		return domain.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}

// Delete removes the product together with every sale line that references
// it. Sale headers and their totals are kept.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	err := repos.RunInTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		return s.Prods.WithTx(tx).DeleteCascade(ctx, id)
	})
	if err == nil || domain.IsNotFound(err) {
		return err
	}
	return &domain.DeleteError{ProductID: id, Err: err}
}

// CheckAvailability reports the stock badge for one product.
func (s *CatalogService) CheckAvailability(ctx context.Context, id int64) (domain.Availability, error) {
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	return StockStatus(p.Stock), nil
}

// StockStatus converts qty into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func StockStatus(qty int) domain.Availability {
	status := "OUT_OF_STOCK"
	switch {
	case qty >= domain.LowStockThreshold:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}
}
