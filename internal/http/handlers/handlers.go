package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/http/dto"
	"github.com/sponsorbridge/backend/internal/middleware"
)

// fail maps service errors onto HTTP statuses and stable error codes in one
// place. Unrecognized errors become opaque 500s so internals never leak to
// clients; chain RPC details stay server-side for the same reason.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "internal"
	msg := "internal error"

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status, code, msg = fiber.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, apperr.ErrForbidden):
		status, code, msg = fiber.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, apperr.ErrAuth):
		status, code, msg = fiber.StatusUnauthorized, "auth_failed", err.Error()
	case errors.Is(err, apperr.ErrConflict):
		status, code, msg = fiber.StatusConflict, "conflict", err.Error()
	case errors.Is(err, apperr.ErrInvalidTransition):
		status, code, msg = fiber.StatusBadRequest, "invalid_transition", err.Error()
	case errors.Is(err, apperr.ErrValidation):
		status, code, msg = fiber.StatusBadRequest, "validation_failed", err.Error()
	case errors.Is(err, apperr.ErrUnparseableURL):
		status, code, msg = fiber.StatusBadRequest, "unparseable_url", err.Error()
	case errors.Is(err, apperr.ErrAdapterMissing):
		status, code, msg = fiber.StatusBadRequest, "adapter_missing", err.Error()
	case errors.Is(err, apperr.ErrRPCTransient), errors.Is(err, apperr.ErrConfirmationTimeout):
		status, code, msg = fiber.StatusServiceUnavailable, "rpc_transient", "upstream service unavailable, retry later"
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     code,
		Message:   msg,
		RequestID: requestID(c),
	})
}

// Health answers liveness probes.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     "validation_failed",
		Message:   msg,
		RequestID: requestID(c),
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: data})
}

func requestID(c *fiber.Ctx) string {
	if id, okk := c.Locals(middleware.CtxRequestID).(string); okk {
		return id
	}
	return ""
}

// pathID parses a positive integer path parameter.
func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return int64(id), nil
}
