package handlers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"bodega/internal/config"
	applog "bodega/internal/log"
)

// NewApp builds the fiber app with the middleware stack and every route.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	engine := html.New(cfg.TemplatesDir, ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: ErrorHandler,
		BodyLimit:    1 << 20,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: applog.Output()}))
	app.Use(helmet.New())
	app.Use(AttachUser(d.AuthSvc))
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/static/") || c.Path() == "/healthz"
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		ContextKey:     "csrf",
		// JSON API calls cannot be forged by a cross-site form
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") &&
				strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	app.Static("/static", filepath.Join(filepath.Dir(filepath.Clean(cfg.TemplatesDir)), "static"))
	Routes(app, d)
	return app
}

func Routes(app *fiber.App, d *Deps) {
	auth := RequireUser(d.AuthSvc)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	// Auth routes (login throttled)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return renderStatus(c, fiber.StatusTooManyRequests, "login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	app.Get("/", auth, d.DashboardHandler.Dashboard)

	// Catalog
	p := app.Group("/products", auth)
	p.Get("/", d.ProductHandler.List)
	p.Get("/new", d.ProductHandler.New)
	p.Post("/", d.ProductHandler.Create)
	p.Get("/:id/edit", d.ProductHandler.Edit)
	p.Post("/:id", d.ProductHandler.Update)
	p.Post("/:id/delete", d.ProductHandler.Delete)
	p.Get("/:id/sell", d.SaleHandler.SellForm)
	p.Post("/:id/sell", d.SaleHandler.Sell)

	// Ledger
	app.Get("/sales", auth, d.SaleHandler.List)
	app.Get("/sales/:id", auth, d.SaleHandler.View)

	// Reports
	app.Get("/reports/sales.xlsx", auth, d.ReportHandler.SalesExcel)
	app.Get("/backup", auth, limiter.New(limiter.Config{Max: 3, Expiration: time.Minute}), d.ReportHandler.Backup)

	// API
	api := app.Group("/api/v1", auth)
	api.Post("/sales", d.SaleHandler.Create)
	api.Get("/chart-data", d.ReportHandler.ChartData)
	api.Get("/products/:id/availability", d.ProductHandler.Availability)

	app.Use(func(c *fiber.Ctx) error {
		return renderStatus(c, fiber.StatusNotFound, "notfound", fiber.Map{"Message": "Page not found"})
	})
}
