package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/http/dto"
	"github.com/sponsorbridge/backend/internal/services"
)

type AuthHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewAuthHandler(users *services.UserService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

func (h *AuthHandler) TelegramAuth(c *fiber.Ctx) error {
	var req dto.TelegramAuthRequest
	if err := c.BodyParser(&req); err != nil || req.InitData == "" {
		return badRequest(c, "init_data is required")
	}

	result, err := h.users.LoginTelegram(c.Context(), req.InitData, req.Role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.AuthResponse{Token: result.Token, User: result.User})
}
