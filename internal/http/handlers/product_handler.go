package handlers

import (
	"strconv"

	"bodega/internal/domain"
	"bodega/internal/log"
	"bodega/internal/services"
	"bodega/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

func productID(c *fiber.Ctx) (int64, error) {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return 0, &domain.NotFoundError{Kind: "product"}
	}
	return id, nil
}

// GET /products?q=&page=
func (h *ProductHandler) List(c *fiber.Ctx) error {
	q := ""
	if raw := c.Query("q"); raw != "" {
		var ok bool
		if q, ok = validate.Q(raw); !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "q"})
			q = ""
		}
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))

	res, err := h.Catalog.List(c.UserContext(), q, page)
	if err != nil {
		return err
	}
	return render(c, "products", fiber.Map{"Page": res})
}

// GET /products/new
func (h *ProductHandler) New(c *fiber.Ctx) error {
	return render(c, "product_form", fiber.Map{
		"Action": "/products", "Title": "New product", "Form": map[string]string{"Stock": "0"},
	})
}

// parseProductForm returns the input and the first field error for re-rendering.
func parseProductForm(c *fiber.Ctx) (services.ProductInput, map[string]string, string) {
	form := map[string]string{
		"Name":  c.FormValue("name"),
		"Price": c.FormValue("price"),
		"Stock": c.FormValue("stock"),
	}
	var in services.ProductInput
	var ok bool
	if in.Name, ok = validate.Name(form["Name"]); !ok {
		return in, form, "Name is required (max 100 characters)."
	}
	if in.Price, ok = validate.Price(form["Price"]); !ok {
		return in, form, "Price must be a non-negative amount with up to 2 decimals."
	}
	if in.Stock, ok = validate.Stock(form["Stock"]); !ok {
		return in, form, "Stock must be a whole number, zero or more."
	}
	return in, form, ""
}

// POST /products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	in, form, msg := parseProductForm(c)
	if msg != "" {
		log.Security(c, "validation.fail", map[string]any{"form": "product"})
		return renderStatus(c, fiber.StatusBadRequest, "product_form", fiber.Map{
			"Action": "/products", "Title": "New product", "Form": form, "Err": msg,
		})
	}
	p, err := h.Catalog.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	log.Audit(c, "product.create", map[string]any{"product_id": p.ID, "name": p.Name, "stock": p.Stock})
	return c.Redirect("/products")
}

// GET /products/:id/edit
func (h *ProductHandler) Edit(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	form := map[string]string{
		"Name":  p.Name,
		"Price": p.Price.StringFixed(2),
		"Stock": strconv.Itoa(p.Stock),
	}
	return render(c, "product_form", fiber.Map{
		"Action": "/products/" + strconv.FormatInt(id, 10), "Title": "Edit product", "Form": form,
	})
}

// POST /products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	in, form, msg := parseProductForm(c)
	if msg != "" {
		log.Security(c, "validation.fail", map[string]any{"form": "product"})
		return renderStatus(c, fiber.StatusBadRequest, "product_form", fiber.Map{
			"Action": "/products/" + strconv.FormatInt(id, 10), "Title": "Edit product", "Form": form, "Err": msg,
		})
	}
	if _, err := h.Catalog.Update(c.UserContext(), id, in); err != nil {
		return err
	}
	log.Audit(c, "product.update", map[string]any{"product_id": id, "price": in.Price.StringFixed(2), "stock": in.Stock})
	return c.Redirect("/products")
}

// POST /products/:id/delete
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	if err := h.Catalog.Delete(c.UserContext(), id); err != nil {
		return err
	}
	log.Audit(c, "product.delete", map[string]any{"product_id": id})
	return c.Redirect("/products")
}

// GET /api/v1/products/:id/availability
func (h *ProductHandler) Availability(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	a, err := h.Catalog.CheckAvailability(c.UserContext(), id)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(a)
}
