package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/services"
)

type MetaHandler struct {
	deals *services.DealService
}

func NewMetaHandler(deals *services.DealService) *MetaHandler {
	return &MetaHandler{deals: deals}
}

// Stats serves aggregate platform numbers for the landing page.
func (h *MetaHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.deals.Stats(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, stats)
}

// Metrics lists the requirement metric types a deal can carry.
func (h *MetaHandler) Metrics(c *fiber.Ctx) error {
	return ok(c, models.AllMetricTypes)
}
