package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorbridge/backend/internal/apperr"
)

func failResponse(t *testing.T, err error) (int, map[string]any) {
	t.Helper()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error { return fail(c, err) })

	resp, terr := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, terr)
	defer resp.Body.Close()

	raw, terr := io.ReadAll(resp.Body)
	require.NoError(t, terr)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestFailStatusAndCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("deal 7: %w", apperr.ErrNotFound), fiber.StatusNotFound, "not_found"},
		{"forbidden", fmt.Errorf("deal 7: %w", apperr.ErrForbidden), fiber.StatusForbidden, "forbidden"},
		{"auth", fmt.Errorf("token: %w", apperr.ErrAuth), fiber.StatusUnauthorized, "auth_failed"},
		{"conflict", fmt.Errorf("deal 7 is settled: %w", apperr.ErrConflict), fiber.StatusConflict, "conflict"},
		{"invalid transition", fmt.Errorf("deal 7: tracking -> completed: %w", apperr.ErrInvalidTransition), fiber.StatusBadRequest, "invalid_transition"},
		{"validation", fmt.Errorf("%w: reason is required", apperr.ErrValidation), fiber.StatusBadRequest, "validation_failed"},
		{"unparseable url", fmt.Errorf("%w: no pattern matched", apperr.ErrUnparseableURL), fiber.StatusBadRequest, "unparseable_url"},
		{"adapter missing", fmt.Errorf("%w: youtube", apperr.ErrAdapterMissing), fiber.StatusBadRequest, "adapter_missing"},
		{"rpc transient", fmt.Errorf("get balance: %w", apperr.ErrRPCTransient), fiber.StatusServiceUnavailable, "rpc_transient"},
		{"confirmation timeout", fmt.Errorf("transfer: %w", apperr.ErrConfirmationTimeout), fiber.StatusServiceUnavailable, "rpc_transient"},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := failResponse(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body["error"])
			msg, ok := body["message"].(string)
			require.True(t, ok, "message must be a string")
			assert.NotEmpty(t, msg)
		})
	}
}

func TestFailHidesInternals(t *testing.T) {
	_, body := failResponse(t, fmt.Errorf("get balance: %w: lite server 10.0.0.1 unreachable", apperr.ErrRPCTransient))
	assert.NotContains(t, body["message"], "lite server")

	_, body = failResponse(t, errors.New("pq: connection refused"))
	assert.Equal(t, "internal error", body["message"])
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/health", Health)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "ok", body["status"])
	ts, ok := body["timestamp"].(string)
	require.True(t, ok, "timestamp must be a string")
	_, err = time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}
