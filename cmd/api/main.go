package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/db"
	apphttp "github.com/sponsorbridge/backend/internal/http"
	"github.com/sponsorbridge/backend/internal/http/handlers"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/platform"
	"github.com/sponsorbridge/backend/internal/platform/telegram"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
	"github.com/sponsorbridge/backend/internal/services"
	"github.com/sponsorbridge/backend/internal/ton"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// TON
	chain, err := ton.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to ton", zap.Error(err))
	}

	cipher, err := privacy.NewFieldCipher(cfg.EncryptionKey())
	if err != nil {
		log.Fatal("invalid encryption key", zap.Error(err))
	}

	// Platform adapters
	registry := platform.NewRegistry()
	registry.Register(telegram.New(cfg.TMEFetchTimeoutMS, cfg.TMEFetchMaxRetries, log))

	// Repositories
	store := repositories.NewStore(pool)
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	requirementRepo := repositories.NewRequirementRepo(pool)
	creativeRepo := repositories.NewCreativeRepo(pool)
	transactionRepo := repositories.NewTransactionRepo(pool)
	transferRepo := repositories.NewTransferRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)
	receiptRepo := repositories.NewReceiptRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)

	// Events
	publisher := notify.NewRedisPublisher(rdb, log)
	subscriber := notify.NewRedisSubscriber(rdb, log)

	// Services
	escrowService := services.NewEscrowService(store, dealRepo, userRepo, disputeRepo,
		transferRepo, transactionRepo, eventRepo, chain, cipher, publisher, cfg, log)
	dealService := services.NewDealService(store, dealRepo, channelRepo, userRepo,
		requirementRepo, eventRepo, escrowService, publisher, cfg, log)
	creativeService := services.NewCreativeService(store, dealRepo, channelRepo,
		creativeRepo, eventRepo, registry, cipher, publisher, log)
	disputeService := services.NewDisputeService(store, dealRepo, disputeRepo,
		eventRepo, escrowService, publisher, log)
	purgeService := services.NewPurgeService(store, dealRepo, channelRepo, creativeRepo,
		transactionRepo, eventRepo, receiptRepo, publisher, log)
	channelService := services.NewChannelService(channelRepo, registry, log)
	userService := services.NewUserService(userRepo, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, log)
	userHandler := handlers.NewUserHandler(userService, log)
	channelHandler := handlers.NewChannelHandler(channelService, log)
	dealHandler := handlers.NewDealHandler(dealService, creativeService, escrowService, purgeService, cfg, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, cfg, log)
	metaHandler := handlers.NewMetaHandler(dealService)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	wsHub.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, channelHandler,
		dealHandler, disputeHandler, metaHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
