package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

// errServerStatus marks a handler that answered with a 5xx without
// returning an error.
var errServerStatus = errors.New("server error status")

// CircuitBreaker sheds load while downstream dependencies are failing.
// Only 5xx outcomes count as failures; client errors and rejected input do
// not trip the breaker.
func CircuitBreaker(breaker *circuitbreaker.Breaker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var handlerErr error
		err := breaker.Execute(c.UserContext(), func(context.Context) error {
			handlerErr = c.Next()
			if handlerErr != nil {
				if code, _ := classify(handlerErr); code < fiber.StatusInternalServerError {
					return nil
				}
				return handlerErr
			}
			if c.Response().StatusCode() >= fiber.StatusInternalServerError {
				return errServerStatus
			}
			return nil
		})

		var cbErr *circuitbreaker.Error
		if errors.As(err, &cbErr) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		}

		return handlerErr
	}
}
