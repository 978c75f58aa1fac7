package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"bodega/internal/domain"
	applog "bodega/internal/log"
)

const friendlyError = "Something went wrong. Please try again."

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// userMessage never exposes store or gateway internals.
func userMessage(err error) string {
	var (
		ve  *domain.ValidationError
		nf  *domain.NotFoundError
		ise *domain.InsufficientStockError
		fe  *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return fmt.Sprintf("The %s %s.", ve.Field, ve.Message)
	case errors.As(err, &nf):
		return fmt.Sprintf("That %s does not exist.", nf.Kind)
	case errors.As(err, &ise):
		return fmt.Sprintf("Not enough stock: %d available, %d requested.", ise.Available, ise.Requested)
	case errors.As(err, &fe) && fe.Code < 500:
		return fe.Message
	case errors.Is(err, domain.ErrDeleteFailed):
		return "The product could not be deleted. Nothing was changed."
	default:
		return friendlyError
	}
}

// ErrorHandler is the app-wide fiber error handler: it logs and renders a
// friendly page with the mapped status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	switch {
	case status >= 500:
		applog.Error(c, "server.error", err, nil)
	case errors.Is(err, domain.ErrValidation):
		applog.Security(c, "validation.fail", map[string]any{"error": err.Error()})
	default:
		applog.Warn(c, "request.rejected", err, nil)
	}

	msg := userMessage(err)
	if rerr := c.Status(status).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(status).SendString(msg)
	}
	return nil
}

// jsonError writes {"error": ...} with the mapped status.
func jsonError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		applog.Error(c, "api.error", err, nil)
	}
	body := fiber.Map{"error": userMessage(err)}
	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		body["available"] = ise.Available
	}
	return c.Status(status).JSON(body)
}
