package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/http/handlers"
	"github.com/sponsorbridge/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	channelHandler *handlers.ChannelHandler,
	dealHandler *handlers.DealHandler,
	disputeHandler *handlers.DisputeHandler,
	metaHandler *handlers.MetaHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", handlers.Health)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public)
	api.Get("/meta/stats", metaHandler.Stats)
	api.Get("/meta/metrics", metaHandler.Metrics)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Put("/me/payout-address", userHandler.SetPayoutAddress)

	// Channels
	protected.Post("/channels", channelHandler.Register)
	protected.Get("/channels/my", channelHandler.MyChannels)
	protected.Get("/channels", channelHandler.List)
	protected.Get("/channels/:id", channelHandler.Get)
	protected.Post("/channels/:id/verify/request", channelHandler.RequestVerification)
	protected.Post("/channels/:id/verify/confirm", channelHandler.ConfirmVerification)
	protected.Post("/channels/:id/refresh-stats", channelHandler.RefreshStats)
	protected.Get("/channels/:id/formats", channelHandler.ListFormats)
	protected.Post("/channels/:id/formats", channelHandler.CreateFormat)
	protected.Put("/channels/:id/formats/:formatId", channelHandler.UpdateFormat)
	protected.Delete("/channels/:id/formats/:formatId", channelHandler.DeleteFormat)

	// Deals
	protected.Post("/deals", dealHandler.Create)
	protected.Get("/deals", dealHandler.List)
	protected.Get("/deals/:id", dealHandler.Get)
	protected.Post("/deals/:id/cancel", dealHandler.Cancel)
	protected.Get("/deals/:id/payment", dealHandler.PaymentInfo)
	protected.Get("/deals/:id/events", dealHandler.Events)
	protected.Get("/deals/:id/transactions", dealHandler.Transactions)
	protected.Get("/deals/:id/receipt", dealHandler.Receipt)

	// Requirements
	protected.Get("/deals/:id/requirements", dealHandler.Requirements)
	protected.Post("/deals/:id/requirements/:reqId/waive", dealHandler.WaiveRequirement)
	protected.Post("/deals/:id/requirements/:reqId/confirm", dealHandler.ConfirmRequirement)

	// Creatives
	protected.Post("/deals/:id/creatives", dealHandler.SubmitCreative)
	protected.Get("/deals/:id/creatives", dealHandler.ListCreatives)
	protected.Post("/deals/:id/creatives/approve", dealHandler.ApproveCreative)
	protected.Post("/deals/:id/creatives/request-revision", dealHandler.RequestRevision)
	protected.Post("/deals/:id/post-proof", dealHandler.SubmitPostProof)

	// Disputes
	protected.Post("/deals/:id/dispute", disputeHandler.Open)
	protected.Get("/deals/:id/dispute", disputeHandler.Get)
	protected.Post("/deals/:id/dispute/evidence", disputeHandler.AddEvidence)
	protected.Post("/deals/:id/dispute/propose", disputeHandler.Propose)
	protected.Post("/deals/:id/dispute/accept", disputeHandler.Accept)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Get("/disputes", disputeHandler.AdminList)
	admin.Post("/deals/:id/dispute/resolve", disputeHandler.AdminResolve)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
