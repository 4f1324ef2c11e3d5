package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/db"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/platform"
	"github.com/sponsorbridge/backend/internal/platform/telegram"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
	"github.com/sponsorbridge/backend/internal/services"
	"github.com/sponsorbridge/backend/internal/ton"
	"github.com/sponsorbridge/backend/internal/workers"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	chain, err := ton.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to ton", zap.Error(err))
	}

	cipher, err := privacy.NewFieldCipher(cfg.EncryptionKey())
	if err != nil {
		log.Fatal("invalid encryption key", zap.Error(err))
	}

	registry := platform.NewRegistry()
	registry.Register(telegram.New(cfg.TMEFetchTimeoutMS, cfg.TMEFetchMaxRetries, log))

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

	publisher := notify.NewRedisPublisher(rdb, log)

	escrowService := services.NewEscrowService(store, dealRepo, userRepo, disputeRepo,
		transferRepo, transactionRepo, eventRepo, chain, cipher, publisher, cfg, log)
	dealService := services.NewDealService(store, dealRepo, channelRepo, userRepo,
		requirementRepo, eventRepo, escrowService, publisher, cfg, log)
	disputeService := services.NewDisputeService(store, dealRepo, disputeRepo,
		eventRepo, escrowService, publisher, log)
	purgeService := services.NewPurgeService(store, dealRepo, channelRepo, creativeRepo,
		transactionRepo, eventRepo, receiptRepo, publisher, log)
	channelService := services.NewChannelService(channelRepo, registry, log)
	trackerService := services.NewTrackerService(dealService, escrowService, store,
		dealRepo, channelRepo, requirementRepo, eventRepo, registry, log)

	w := workers.New(cfg, rdb, dealRepo, dealService, escrowService, trackerService,
		channelService, disputeService, purgeService, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	log.Info("starting workers")
	w.Run(ctx)
}
