package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
)

type PurgeService struct {
	store        *repositories.Store
	deals        *repositories.DealRepo
	channels     *repositories.ChannelRepo
	creatives    *repositories.CreativeRepo
	transactions *repositories.TransactionRepo
	events       *repositories.EventRepo
	receipts     *repositories.ReceiptRepo
	publisher    notify.Publisher
	log          *zap.Logger
}

func NewPurgeService(
	store *repositories.Store,
	deals *repositories.DealRepo,
	channels *repositories.ChannelRepo,
	creatives *repositories.CreativeRepo,
	transactions *repositories.TransactionRepo,
	events *repositories.EventRepo,
	receipts *repositories.ReceiptRepo,
	publisher notify.Publisher,
	log *zap.Logger,
) *PurgeService {
	return &PurgeService{
		store: store, deals: deals, channels: channels, creatives: creatives,
		transactions: transactions, events: events, receipts: receipts,
		publisher: publisher, log: log,
	}
}

// PurgeDeal replaces a settled deal's sensitive payload with a receipt. The
// receipt's hash is computed over the data before it is destroyed, so the
// deal remains provable afterwards. Everything commits in one transaction:
// either the receipt exists and the data is gone, or neither.
func (s *PurgeService) PurgeDeal(ctx context.Context, dealID int64) (*models.DealReceipt, error) {
	d, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.CompletedAt == nil || !models.IsTerminal(d.Status) {
		return nil, fmt.Errorf("deal %d is not settled: %w", dealID, apperr.ErrConflict)
	}

	channel, err := s.channels.GetByID(ctx, d.ChannelID)
	if err != nil {
		return nil, err
	}

	dataHash, err := privacy.HashDealData(receiptHashFields(d))
	if err != nil {
		return nil, err
	}

	receipt := &models.DealReceipt{
		DealID:          d.ID,
		ChannelTitle:    channel.Title,
		OwnerAlias:      d.OwnerAlias,
		AdvertiserAlias: d.AdvertiserAlias,
		Amount:          d.Amount,
		FinalStatus:     d.Status,
		CompletedAt:     *d.CompletedAt,
		DataHash:        dataHash,
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.receipts.Create(ctx, tx, receipt); err != nil {
			return err
		}
		if err := s.deals.PurgeSensitive(ctx, tx, d.ID); err != nil {
			return err
		}
		if err := s.creatives.PurgeSensitive(ctx, tx, d.ID); err != nil {
			return err
		}
		if err := s.transactions.PurgeSensitive(ctx, tx, d.ID); err != nil {
			return err
		}
		return s.events.DeleteByDeal(ctx, tx, d.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deal purged", zap.Int64("deal_id", d.ID), zap.String("data_hash", dataHash))
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventDealPurged,
			Payload: map[string]any{"deal_id": d.ID},
		})
	}
	return receipt, nil
}

// receiptHashFields is the exact field set the receipt hash commits to: the
// identifiers and money facts that remain provable after the sensitive
// payload is destroyed. Caller guarantees completed_at is set.
func receiptHashFields(d *models.Deal) map[string]any {
	fields := map[string]any{
		"deal_id":       d.ID,
		"channel_id":    d.ChannelID,
		"advertiser_id": d.AdvertiserUserID,
		"amount":        d.Amount,
		"final_status":  d.Status,
		"completed_at":  d.CompletedAt.UTC().Format(time.RFC3339),
	}
	if d.EscrowAddress != nil {
		fields["escrow_address"] = *d.EscrowAddress
	}
	return fields
}

// Receipt returns the purge receipt for a deal.
func (s *PurgeService) Receipt(ctx context.Context, dealID int64) (*models.DealReceipt, error) {
	return s.receipts.GetByDeal(ctx, dealID)
}
