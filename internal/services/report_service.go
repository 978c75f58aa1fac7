package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bodega/internal/domain"
	"bodega/internal/repos"
)

const recentSales = 5

type Dashboard struct {
	Products   int
	SalesCount int
	SalesTotal decimal.Decimal
	LowStock   int
	Recent     []domain.Sale
}

// ChartData feeds the stock-per-product bar chart.
type ChartData struct {
	Names  []string `json:"names"`
	Stocks []int    `json:"stocks"`
}

type ReportService struct {
	DB       *sqlx.DB
	Prods    *repos.ProductRepo
	Sales    *repos.SaleRepo
	Location *time.Location
}

func NewReportService(db *sqlx.DB, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{DB: db, Prods: repos.NewProductRepo(db), Sales: repos.NewSaleRepo(db), Location: loc}
}

func (s *ReportService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.Products, err = s.Prods.Count(ctx, ""); err != nil {
		return d, err
	}
	if d.SalesCount, err = s.Sales.Count(ctx); err != nil {
		return d, err
	}
	if d.SalesTotal, err = s.Sales.Total(ctx); err != nil {
		return d, err
	}
	if d.LowStock, err = s.Prods.LowStockCount(ctx, domain.LowStockThreshold); err != nil {
		return d, err
	}
	if d.Recent, err = s.Sales.List(ctx, recentSales); err != nil {
		return d, err
	}
	d.Recent = domain.SalesInZone(d.Recent, s.Location)
	return d, nil
}

func (s *ReportService) ChartData(ctx context.Context) (ChartData, error) {
	all, err := s.Prods.All(ctx)
	if err != nil {
		return ChartData{}, err
	}
	out := ChartData{Names: make([]string, 0, len(all)), Stocks: make([]int, 0, len(all))}
	for _, p := range all {
		out.Names = append(out.Names, p.Name)
		out.Stocks = append(out.Stocks, p.Stock)
	}
	return out, nil
}

// ExportSales renders every sale, newest first, as an xlsx workbook with
// ID, Date and Total columns.
func (s *ReportService) ExportSales(ctx context.Context) ([]byte, error) {
	sales, err := s.Sales.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	const sheet = "Sales"
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return nil, err
	}
	for i, h := range []string{"ID", "Date", "Total"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, sale := range sales {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprint("A", row), sale.ID)
		_ = f.SetCellValue(sheet, fmt.Sprint("B", row), sale.When().In(s.Location).Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheet, fmt.Sprint("C", row), sale.Total.InexactFloat64())
		_ = f.SetCellStyle(sheet, fmt.Sprint("C", row), fmt.Sprint("C", row), money)
	}
	_ = f.SetColWidth(sheet, "B", "B", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Backup returns a consistent snapshot of the store and a suggested filename.
func (s *ReportService) Backup(ctx context.Context, now time.Time) ([]byte, string, error) {
	dir, err := os.MkdirTemp("", "bodega-backup-")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)

	name := "bodega-" + now.In(s.Location).Format("20060102-150405") + ".db"
	path := filepath.Join(dir, name)
	if err := repos.Backup(ctx, s.DB, path); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, name, nil
}
