package handlers

import (
	"time"

	"bodega/internal/config"
	"bodega/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	AuthSvc *services.AuthService

	AuthHandler      *AuthHandler
	DashboardHandler *DashboardHandler
	ProductHandler   *ProductHandler
	SaleHandler      *SaleHandler
	ReportHandler    *ReportHandler
}

// NewDeps wires repos, services and handlers. invoices may be nil.
func NewDeps(db *sqlx.DB, cfg config.Config, invoices services.InvoiceSubmitter) *Deps {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	authSvc := services.NewAuthService(db, cfg.SessionIdle)
	catalogSvc := services.NewCatalogService(db)
	saleSvc := services.NewSaleService(db, invoices, loc)
	reportSvc := services.NewReportService(db, loc)

	return &Deps{
		AuthSvc:          authSvc,
		AuthHandler:      &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		DashboardHandler: &DashboardHandler{Reports: reportSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		SaleHandler:      &SaleHandler{Catalog: catalogSvc, Sales: saleSvc, InvoicingOn: invoices != nil},
		ReportHandler:    &ReportHandler{Reports: reportSvc, Now: time.Now},
	}
}
