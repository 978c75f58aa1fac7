package handlers

import (
	"errors"
	"strings"

	"bodega/internal/domain"
	applog "bodega/internal/log"
	"bodega/internal/services"

	"github.com/gofiber/fiber/v2"
)

// resolveUser looks the session up once per request and caches the outcome
// in Locals.
func resolveUser(c *fiber.Ctx, auth *services.AuthService) (domain.User, error) {
	if u, ok := c.Locals("user").(domain.User); ok {
		return u, nil
	}
	if err, ok := c.Locals("sessionErr").(error); ok {
		return domain.User{}, err
	}
	sid := c.Cookies("sid")
	if sid == "" {
		return domain.User{}, services.ErrNoSession
	}
	u, err := auth.CurrentUser(c.UserContext(), sid)
	if err != nil {
		c.Locals("sessionErr", err)
		return domain.User{}, err
	}
	c.Locals("user", u)
	return u, nil
}

// RequireUser enforces that a cashier is logged in. Pages redirect to
// /login; API calls get a 401.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, err := resolveUser(c, auth)
		if err == nil {
			return c.Next()
		}
		if !errors.Is(err, services.ErrNoSession) && !errors.Is(err, services.ErrSessionExpired) {
			applog.Error(c, "session.lookup", err, nil)
		}
		if strings.HasPrefix(c.Path(), "/api/") {
			applog.Security(c, "access.denied.api", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
		}
		if errors.Is(err, services.ErrSessionExpired) {
			return c.Redirect("/login?expired=1")
		}
		return c.Redirect("/login")
	}
}

// AttachUser puts the session user, if any, into Locals for templates.
func AttachUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, _ = resolveUser(c, auth)
		return c.Next()
	}
}
