package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
	"github.com/seu-repo/hiya-assistant/internal/service/auth"
)

type AuthHandler struct {
	service ports.AuthService
	ledger  ports.SessionLedger
	log     *zap.Logger
}

// NewAuthHandler wires the auth routes. ledger may be nil; when set, logout
// also drops the user's conversational session.
func NewAuthHandler(service ports.AuthService, ledger ports.SessionLedger, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		ledger:  ledger,
		log:     log,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func tokens(access, refresh string) fiber.Map {
	return fiber.Map{
		"accessToken":  access,
		"refreshToken": refresh,
	}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	token, refreshToken, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn("Login failed", zap.String("email", req.Email), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	user, _ := h.service.ValidateToken(c.Context(), token)

	return c.JSON(fiber.Map{
		"tokens": tokens(token, refreshToken),
		"user":   user,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user := domain.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Timezone: req.Timezone,
	}
	plainPassword := req.Password

	if err := h.service.Register(c.Context(), &user); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, domain.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return err
	}

	// Auto-login after registration
	token, refreshToken, err := h.service.Login(c.Context(), user.Email, plainPassword)
	if err != nil {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":   user,
		"tokens": tokens(token, refreshToken),
	})
}

func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token, err := h.service.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(tokens(token, req.RefreshToken))
}

// Logout revokes the bearer token and, best effort, the refresh token in
// the body. The session is cleared so a pending question does not survive.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	token, _ := c.Locals("token").(string)

	if err := h.service.Logout(c.Context(), token); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req RefreshRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		if err := h.service.Logout(c.Context(), req.RefreshToken); err != nil {
			h.log.Debug("Refresh token not revoked", zap.Error(err))
		}
	}

	if h.ledger != nil && userID != "" {
		if err := h.ledger.ClearSession(c.Context(), userID); err != nil {
			h.log.Warn("Failed to clear session on logout", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := c.Locals("user")
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}
	return c.JSON(user)
}
