package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/mocks"
	"github.com/seu-repo/hiya-assistant/internal/service/auth"
	"github.com/seu-repo/hiya-assistant/pkg/config"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fiber error", fiber.NewError(fiber.StatusNotFound, "nope"), http.StatusNotFound},
		{"validation", domain.NewError(domain.KindValidation, "tools.email", errors.New("bad address")), http.StatusBadRequest},
		{"transcription", domain.NewError(domain.KindTranscription, "openai.transcribe", errors.New("boom")), http.StatusUnprocessableEntity},
		{"calendar", domain.NewError(domain.KindCalendarUnavailable, "calendar.list", nil), http.StatusServiceUnavailable},
		{"persistence", fmt.Errorf("history: %w", domain.NewError(domain.KindPersistence, "ledger.history", nil)), http.StatusInternalServerError},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"plain", errors.New("kaboom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(newTestLogger())})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestErrorHandler_HidesProviderDetail(t *testing.T) {
	_, body := classify(domain.NewError(domain.KindClassification, "openai.classify", errors.New("sk-secret leaked")))

	if body["error"] != domain.UserMessage(domain.KindClassification) {
		t.Errorf("expected user message, got %v", body["error"])
	}
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	// Arrange
	settings := circuitbreaker.DefaultSettings("http-test")
	settings.MinRequests = 2
	settings.FailureRatio = 0.5
	settings.Timeout = time.Minute
	breaker := circuitbreaker.New(settings, newTestLogger())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(newTestLogger())})
	app.Use(CircuitBreaker(breaker))
	app.Get("/fail", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad") })

	// Act
	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
		resp.Body.Close()
	}
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/bad", nil))

	// Assert
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected open breaker to return 503, got %d", resp.StatusCode)
	}
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	settings := circuitbreaker.DefaultSettings("http-client-errors")
	settings.MinRequests = 2
	breaker := circuitbreaker.New(settings, newTestLogger())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(newTestLogger())})
	app.Use(CircuitBreaker(breaker))
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad") })

	for i := 0; i < 5; i++ {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/bad", nil))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("request %d: expected 400, got %d", i, resp.StatusCode)
		}
	}
	if breaker.State() != "closed" {
		t.Errorf("expected closed breaker, got %s", breaker.State())
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(config.RateLimitingConfig{MaxRequests: 2, Window: time.Minute}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	var last int
	for i := 0; i < 3; i++ {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		last = resp.StatusCode
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", last)
	}
}

func TestAuthRequired_HeaderFormats(t *testing.T) {
	svc := &mocks.MockAuthService{
		ValidateTokenFunc: func(ctx context.Context, token string) (*domain.User, error) {
			if token != "good" {
				return nil, auth.ErrInvalidToken
			}
			return &domain.User{ID: "user-1", Role: domain.UserRoleUser}, nil
		},
	}
	app := fiber.New()
	app.Get("/", AuthRequired(svc), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
		{"bad token", "Bearer bad", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, _ := app.Test(req)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}
