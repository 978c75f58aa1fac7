package handlers

import (
	"errors"
	"time"

	"bodega/internal/domain"
	"bodega/internal/log"
	"bodega/internal/services"
	"bodega/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.CookieSecure,
		})
	}
	return sid
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	data := fiber.Map{"Err": ""}
	if c.Query("expired") != "" {
		data["Notice"] = "Your session expired. Please sign in again."
	}
	return render(c, "login", data)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	username, ok := validate.Username(c.FormValue("username"))
	pass := c.FormValue("password")
	if !ok || !validate.Password(pass) {
		log.Security(c, "auth.login.fail", map[string]any{"username": username, "reason": "bad_format"})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": "Invalid username or password"})
	}

	if _, err := h.Auth.Login(c.UserContext(), sid, username, pass); err != nil {
		if !errors.Is(err, services.ErrBadCreds) {
			return err
		}
		log.Security(c, "auth.login.fail", map[string]any{"username": username})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": "Invalid username or password"})
	}

	log.Audit(c, "auth.login.success", map[string]any{"username": username})
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
		log.Warn(c, "auth.logout", err, nil)
	}
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	fields := map[string]any{}
	if u, ok := c.Locals("user").(domain.User); ok {
		fields["username"] = u.Username
	}
	log.Audit(c, "auth.logout", fields)
	return c.Redirect("/login")
}
