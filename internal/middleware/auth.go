package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/auth"
	"github.com/sponsorbridge/backend/internal/config"
)

const (
	CtxUserID     = "user_id"
	CtxExternalID = "external_id"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "auth_failed", "message": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "auth_failed", "message": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "auth_failed", "message": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxExternalID, claims.ExternalID)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(CtxUserID).(int64)
	return id
}

func GetExternalID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(CtxExternalID).(int64)
	return id
}

// AdminMiddleware gates routes to the configured admin list.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.IsAdmin(GetExternalID(c)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "admin access required"})
		}
		return c.Next()
	}
}
