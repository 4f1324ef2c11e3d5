package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/http/dto"
	"github.com/sponsorbridge/backend/internal/middleware"
	"github.com/sponsorbridge/backend/internal/services"
)

type UserHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.users.Get(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, user)
}

func (h *UserHandler) SetPayoutAddress(c *fiber.Ctx) error {
	var req dto.SetPayoutAddressRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return badRequest(c, "address is required")
	}

	user, err := h.users.SetPayoutAddress(c.Context(), middleware.GetUserID(c), req.Address)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, user)
}
