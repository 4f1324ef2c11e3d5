package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/http/dto"
	"github.com/sponsorbridge/backend/internal/middleware"
	"github.com/sponsorbridge/backend/internal/services"
)

type DealHandler struct {
	deals     *services.DealService
	creatives *services.CreativeService
	escrow    *services.EscrowService
	purge     *services.PurgeService
	cfg       *config.Config
	log       *zap.Logger
}

func NewDealHandler(
	deals *services.DealService,
	creatives *services.CreativeService,
	escrow *services.EscrowService,
	purge *services.PurgeService,
	cfg *config.Config,
	log *zap.Logger,
) *DealHandler {
	return &DealHandler{deals: deals, creatives: creatives, escrow: escrow, purge: purge, cfg: cfg, log: log}
}

func (h *DealHandler) isAdmin(c *fiber.Ctx) bool {
	return h.cfg.IsAdmin(middleware.GetExternalID(c))
}

func (h *DealHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.AdFormatID <= 0 {
		return badRequest(c, "ad_format_id is required")
	}

	deal, err := h.deals.CreateDeal(c.Context(), middleware.GetUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, deal)
}

func (h *DealHandler) List(c *fiber.Ctx) error {
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
	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}
	side := c.Query("side", "advertiser")

	deals, err := h.deals.ListDeals(c.Context(), middleware.GetUserID(c), side, status, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, deals)
}

func (h *DealHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	deal, err := h.deals.GetDeal(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, deal)
}

func (h *DealHandler) Cancel(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	deal, err := h.deals.Cancel(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, deal)
}

// PaymentInfo tells the advertiser where to send the deal amount. Funding is
// detected by balance, so no memo is needed.
func (h *DealHandler) PaymentInfo(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	deal, err := h.deals.GetDeal(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	if deal.EscrowAddress == nil {
		return badRequest(c, "escrow address is not ready yet, retry shortly")
	}
	return c.JSON(dto.PaymentInfoResponse{
		DealID:        deal.ID,
		EscrowAddress: *deal.EscrowAddress,
		Amount:        deal.Amount,
		Status:        deal.Status,
	})
}

func (h *DealHandler) Events(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	events, err := h.deals.Events(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, events)
}

func (h *DealHandler) Transactions(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	txs, err := h.escrow.Transactions(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, txs)
}

func (h *DealHandler) Receipt(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	receipt, err := h.purge.Receipt(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, receipt)
}

// ---- Requirements ----

func (h *DealHandler) Requirements(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	reqs, err := h.deals.Requirements(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, reqs)
}

func (h *DealHandler) WaiveRequirement(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	reqID, err := pathID(c, "reqId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.deals.WaiveRequirement(c.Context(), id, reqID, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

func (h *DealHandler) ConfirmRequirement(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	reqID, err := pathID(c, "reqId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.deals.ConfirmRequirement(c.Context(), id, reqID, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

// ---- Creatives ----

func (h *DealHandler) SubmitCreative(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.SubmitCreativeRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return badRequest(c, "text is required")
	}

	creative, err := h.creatives.Submit(c.Context(), id, middleware.GetUserID(c),
		req.Text, req.MediaURL, req.MediaType)
	if err != nil {
		return fail(c, err)
	}
	return created(c, creative)
}

func (h *DealHandler) ListCreatives(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	views, err := h.creatives.List(c.Context(), id, middleware.GetUserID(c), h.isAdmin(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, views)
}

func (h *DealHandler) ApproveCreative(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.creatives.Approve(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

func (h *DealHandler) RequestRevision(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.RequestRevisionRequest
	_ = c.BodyParser(&req)

	if err := h.creatives.RequestRevision(c.Context(), id, middleware.GetUserID(c), req.Notes); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

func (h *DealHandler) SubmitPostProof(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.PostProofRequest
	if err := c.BodyParser(&req); err != nil || req.PostURL == "" {
		return badRequest(c, "post_url is required")
	}

	if err := h.creatives.SubmitPostProof(c.Context(), id, middleware.GetUserID(c), req.PostURL); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}
