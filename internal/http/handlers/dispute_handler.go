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

type DisputeHandler struct {
	disputes *services.DisputeService
	cfg      *config.Config
	log      *zap.Logger
}

func NewDisputeHandler(disputes *services.DisputeService, cfg *config.Config, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, cfg: cfg, log: log}
}

func (h *DisputeHandler) Open(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil || req.Reason == "" {
		return badRequest(c, "reason is required")
	}

	dispute, err := h.disputes.Open(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return created(c, dispute)
}

func (h *DisputeHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	isAdmin := h.cfg.IsAdmin(middleware.GetExternalID(c))
	dispute, evidence, err := h.disputes.Get(c.Context(), id, middleware.GetUserID(c), isAdmin)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.DisputeResponse{Dispute: dispute, Evidence: evidence})
}

func (h *DisputeHandler) AddEvidence(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.DisputeEvidenceRequest
	if err := c.BodyParser(&req); err != nil || req.Description == "" {
		return badRequest(c, "description is required")
	}

	ev, err := h.disputes.AddEvidence(c.Context(), id, middleware.GetUserID(c), req.Description, req.URL)
	if err != nil {
		return fail(c, err)
	}
	return created(c, ev)
}

func (h *DisputeHandler) Propose(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.DisputeProposalRequest
	if err := c.BodyParser(&req); err != nil || req.Outcome == "" {
		return badRequest(c, "outcome is required")
	}

	dispute, err := h.disputes.Propose(c.Context(), id, middleware.GetUserID(c), req.Outcome, req.SplitPercent)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, dispute)
}

func (h *DisputeHandler) Accept(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	dispute, err := h.disputes.Accept(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, dispute)
}

// ---- Admin ----

func (h *DisputeHandler) AdminList(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	disputes, err := h.disputes.ListForAdmin(c.Context(), c.Query("status"), limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, disputes)
}

func (h *DisputeHandler) AdminResolve(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.AdminResolveRequest
	if err := c.BodyParser(&req); err != nil || req.Outcome == "" {
		return badRequest(c, "outcome is required")
	}

	dispute, err := h.disputes.AdminResolve(c.Context(), id, middleware.GetUserID(c),
		req.Outcome, req.SplitPercent, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, dispute)
}
