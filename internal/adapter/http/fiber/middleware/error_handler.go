package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/service/auth"
)

// ErrorHandler renders classified errors. Domain failures carry the user
// facing message for their kind, never the provider detail.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, body := classify(err)

		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code),
			)
		}

		return c.Status(code).JSON(body)
	}
}

func classify(err error) (int, fiber.Map) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"error": fe.Message}
	}

	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInvalidCredentials) {
		return fiber.StatusUnauthorized, fiber.Map{"error": err.Error()}
	}

	var cbErr *circuitbreaker.Error
	if errors.As(err, &cbErr) {
		return fiber.StatusServiceUnavailable, fiber.Map{"error": "Service temporarily unavailable"}
	}

	if kind := domain.KindOf(err); kind != "" {
		return statusForKind(kind), fiber.Map{
			"error": domain.UserMessage(kind),
			"kind":  kind,
		}
	}

	return fiber.StatusInternalServerError, fiber.Map{"error": "Internal server error"}
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindTranscription:
		return fiber.StatusUnprocessableEntity
	case domain.KindClassification, domain.KindNotificationDelivery, domain.KindEmailDelivery:
		return fiber.StatusBadGateway
	case domain.KindCalendarUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
