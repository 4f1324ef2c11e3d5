package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/http/dto"
	"github.com/sponsorbridge/backend/internal/middleware"
	"github.com/sponsorbridge/backend/internal/services"
)

type ChannelHandler struct {
	channels *services.ChannelService
	log      *zap.Logger
}

func NewChannelHandler(channels *services.ChannelService, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, log: log}
}

func (h *ChannelHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterChannelRequest
	if err := c.BodyParser(&req); err != nil || req.Platform == "" || req.ChannelID == "" {
		return badRequest(c, "platform and channel_id are required")
	}

	ch, err := h.channels.Register(c.Context(), middleware.GetUserID(c), req.Platform, req.ChannelID)
	if err != nil {
		return fail(c, err)
	}
	return created(c, ch)
}

func (h *ChannelHandler) MyChannels(c *fiber.Ctx) error {
	chans, err := h.channels.ListByOwner(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, chans)
}

func (h *ChannelHandler) List(c *fiber.Ctx) error {
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	chans, err := h.channels.List(c.Context(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, chans)
}

func (h *ChannelHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ch, err := h.channels.Get(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, ch)
}

func (h *ChannelHandler) RequestVerification(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	token, err := h.channels.RequestVerification(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.VerificationTokenResponse{
		Token:        token,
		Instructions: "add this token to your channel description, then confirm verification",
	})
}

func (h *ChannelHandler) ConfirmVerification(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ch, err := h.channels.ConfirmVerification(c.Context(), id,
		middleware.GetUserID(c), middleware.GetExternalID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, ch)
}

func (h *ChannelHandler) RefreshStats(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ch, err := h.channels.Get(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	if err := h.channels.RefreshStats(c.Context(), ch); err != nil {
		return fail(c, err)
	}
	ch, err = h.channels.Get(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, ch)
}

// ---- Ad formats ----

func (h *ChannelHandler) CreateFormat(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.AdFormatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	f, err := h.channels.CreateFormat(c.Context(), id, middleware.GetUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, f)
}

func (h *ChannelHandler) UpdateFormat(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	formatID, err := pathID(c, "formatId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.AdFormatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	f, err := h.channels.UpdateFormat(c.Context(), id, formatID, middleware.GetUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, f)
}

func (h *ChannelHandler) DeleteFormat(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	formatID, err := pathID(c, "formatId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.channels.DeleteFormat(c.Context(), id, formatID, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

func (h *ChannelHandler) ListFormats(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	formats, err := h.channels.ListFormats(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, formats)
}
