package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"bodega/internal/domain"
	applog "bodega/internal/log"
	"bodega/internal/services"
	"bodega/internal/validate"
)

type SaleHandler struct {
	Catalog     *services.CatalogService
	Sales       *services.SaleService
	InvoicingOn bool
}

func saleFields(r services.SaleReceipt) map[string]any {
	return map[string]any{
		"sale_id":    r.Sale.ID,
		"total":      r.Sale.Total.StringFixed(2),
		"remaining":  r.RemainingStock,
		"invoice":    string(r.Sale.Status),
		"product_id": r.Sale.Lines[0].ProductID,
		"qty":        r.Sale.Lines[0].Quantity,
	}
}

// GET /products/:id/sell
func (h *SaleHandler) SellForm(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return render(c, "sell", fiber.Map{
		"P": p, "Avail": services.StockStatus(p.Stock), "InvoicingOn": h.InvoicingOn, "Form": map[string]string{"Qty": "1"},
	})
}

// POST /products/:id/sell
func (h *SaleHandler) Sell(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	form := map[string]string{
		"Qty":           c.FormValue("quantity"),
		"CustomerName":  c.FormValue("customer_name"),
		"CustomerTaxID": c.FormValue("customer_tax_id"),
	}
	again := func(status int, msg string) error {
		p, perr := h.Catalog.Get(c.UserContext(), id)
		if perr != nil {
			return perr
		}
		return renderStatus(c, status, "sell", fiber.Map{
			"P": p, "Avail": services.StockStatus(p.Stock), "InvoicingOn": h.InvoicingOn, "Form": form, "Err": msg,
		})
	}

	qty, ok := validate.Qty(form["Qty"])
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "quantity"})
		return again(fiber.StatusBadRequest, "Quantity must be a whole number greater than zero.")
	}
	name := ""
	if form["CustomerName"] != "" {
		if name, ok = validate.Name(form["CustomerName"]); !ok {
			return again(fiber.StatusBadRequest, "Customer name is too long.")
		}
	}
	taxID, ok := validate.TaxID(form["CustomerTaxID"])
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "customer_tax_id"})
		return again(fiber.StatusBadRequest, "The tax id must contain only digits (DNI 8, RUC 11).")
	}

	rec, err := h.Sales.RecordSale(c.UserContext(), services.SaleRequest{
		ProductID: id, Quantity: qty, CustomerName: name, CustomerTaxID: taxID,
	})
	if err != nil {
		if domain.IsClientError(err) {
			applog.Warn(c, "sale.rejected", err, map[string]any{"product_id": id, "qty": qty})
			return again(statusFor(err), userMessage(err))
		}
		return err
	}
	applog.Audit(c, "sale.record", saleFields(rec))
	return c.Redirect("/sales/" + strconv.FormatInt(rec.Sale.ID, 10))
}

// GET /sales
func (h *SaleHandler) List(c *fiber.Ctx) error {
	sales, err := h.Sales.ListSales(c.UserContext(), 0)
	if err != nil {
		return err
	}
	return render(c, "sales", fiber.Map{"Sales": sales})
}

// GET /sales/:id
func (h *SaleHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return &domain.NotFoundError{Kind: "sale"}
	}
	s, err := h.Sales.GetSale(c.UserContext(), id)
	if err != nil {
		return err
	}
	return render(c, "sale", fiber.Map{"S": s})
}

type saleBody struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
	CustomerName  string `json:"customer_name"`
	CustomerTaxID string `json:"customer_tax_id"`
}

// POST /api/v1/sales
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var body saleBody
	if err := c.BodyParser(&body); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "body"})
		return jsonError(c, &domain.ValidationError{Field: "body", Message: "must be a JSON sale request"})
	}

	rec, err := h.Sales.RecordSale(c.UserContext(), services.SaleRequest(body))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			applog.Security(c, "validation.fail", map[string]any{"field": ve.Field})
		} else if domain.IsClientError(err) || domain.IsNotFound(err) {
			applog.Warn(c, "sale.rejected", err, map[string]any{"product_id": body.ProductID, "qty": body.Quantity})
		}
		return jsonError(c, err)
	}
	applog.Audit(c, "sale.record", saleFields(rec))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sale":            rec.Sale,
		"remaining_stock": rec.RemainingStock,
	})
}
