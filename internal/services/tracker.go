package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/platform"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
)

// TrackerService drives requirement evaluation for posted deals. The metric
// worker calls it per tracking deal.
type TrackerService struct {
	dealSvc      *DealService
	escrow       *EscrowService
	store        *repositories.Store
	deals        *repositories.DealRepo
	channels     *repositories.ChannelRepo
	requirements *repositories.RequirementRepo
	events       *repositories.EventRepo
	registry     *platform.Registry
	log          *zap.Logger
}

func NewTrackerService(
	dealSvc *DealService,
	escrow *EscrowService,
	store *repositories.Store,
	deals *repositories.DealRepo,
	channels *repositories.ChannelRepo,
	requirements *repositories.RequirementRepo,
	events *repositories.EventRepo,
	registry *platform.Registry,
	log *zap.Logger,
) *TrackerService {
	return &TrackerService{
		dealSvc: dealSvc, escrow: escrow, store: store, deals: deals,
		channels: channels, requirements: requirements, events: events,
		registry: registry, log: log,
	}
}

// EvaluateTrackingDeal takes one metrics snapshot, folds it into the deal's
// requirements, and settles the deal when the verification window allows:
// all requirements satisfied promotes to verified, an expired window with
// anything outstanding fails the deal and refunds the advertiser.
//
// Metric fetch errors leave the requirements untouched; an unreachable
// platform must never fail a deal.
func (t *TrackerService) EvaluateTrackingDeal(ctx context.Context, d *models.Deal) error {
	if d.Status != models.DealStatusTracking || d.PostedPlatformID == nil {
		return nil
	}

	channel, err := t.channels.GetByID(ctx, d.ChannelID)
	if err != nil {
		return err
	}
	adapter, err := t.registry.Get(channel.Platform)
	if err != nil {
		return err
	}
	ref := platform.PostRef{ChannelID: channel.PlatformChannelID, PostID: *d.PostedPlatformID}

	metrics, err := adapter.FetchPostMetrics(ctx, ref)
	if err != nil {
		t.log.Warn("metric fetch failed", zap.Int64("deal_id", d.ID), zap.Error(err))
		metrics = nil
	}

	tampered := t.checkTamper(ctx, adapter, d, ref, metrics)

	reqs, err := t.requirements.ListByDeal(ctx, d.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range reqs {
		req := &reqs[i]
		newValue, newStatus := EvaluateRequirement(req, metrics, tampered)

		var metAt *time.Time
		if newStatus == models.RequirementMet && req.MetAt == nil {
			metAt = &now
		}
		if err := t.requirements.UpdateProgress(ctx, req.ID, newValue, newStatus, metAt, now); err != nil {
			return err
		}
		if newStatus == models.RequirementEditDetected && req.Status != models.RequirementEditDetected {
			t.logEvent(ctx, d.ID, "post_edit_detected", map[string]any{"requirement_id": req.ID})
		}
		req.CurrentValue = newValue
		if !req.Satisfied() {
			req.Status = newStatus
		}
	}

	if AllSatisfied(reqs) {
		return t.dealSvc.maybeVerify(ctx, d.ID)
	}
	if WindowExpired(d, now) {
		return t.failExpired(ctx, d.ID)
	}
	return nil
}

// checkTamper compares the live post content hash against the baseline taken
// at proof submission.
func (t *TrackerService) checkTamper(ctx context.Context, adapter platform.Adapter, d *models.Deal, ref platform.PostRef, metrics *platform.PostMetrics) bool {
	if d.ContentHash == nil || metrics == nil || !metrics.Exists {
		return false
	}
	fetcher, ok := adapter.(platform.ContentFetcher)
	if !ok {
		return false
	}
	content, exists, err := fetcher.FetchPostContent(ctx, ref)
	if err != nil || !exists {
		return false
	}
	return privacy.HashContent(content) != *d.ContentHash
}

// failExpired closes a tracking deal whose window ran out with unmet
// requirements, then starts the refund.
func (t *TrackerService) failExpired(ctx context.Context, dealID int64) error {
	var failed bool
	err := t.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := t.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if locked.Status != models.DealStatusTracking {
			return nil
		}
		if err := transitionLocked(ctx, tx, t.deals, t.events, locked,
			models.DealStatusFailed, EventWindowExpired, nil, nil); err != nil {
			return err
		}
		failed = true
		return nil
	})
	if err != nil || !failed {
		return err
	}

	if err := t.escrow.Refund(ctx, dealID); err != nil {
		// Deal sits in failed; refund is retried on the next sweep or
		// claimed manually.
		t.log.Error("refund after window expiry failed", zap.Int64("deal_id", dealID), zap.Error(err))
	}
	return nil
}

// RetryPayouts re-attempts the release for deals stuck in verified, such as
// when the owner had no payout address at verification time.
func (t *TrackerService) RetryPayouts(ctx context.Context) {
	status := models.DealStatusVerified
	stuck, err := t.deals.List(ctx, repositories.DealFilter{Status: &status, Limit: 50})
	if err != nil {
		t.log.Error("list verified deals", zap.Error(err))
		return
	}
	for i := range stuck {
		if err := t.escrow.Release(ctx, stuck[i].ID); err != nil {
			t.log.Warn("payout retry failed", zap.Int64("deal_id", stuck[i].ID), zap.Error(err))
		}
	}
}

func (t *TrackerService) logEvent(ctx context.Context, dealID int64, eventType string, meta map[string]any) {
	err := t.events.Append(ctx, t.store.Pool(), &models.DealEvent{
		DealID:    dealID,
		EventType: eventType,
		Metadata:  meta,
	})
	if err != nil {
		t.log.Warn("event append failed", zap.Int64("deal_id", dealID), zap.Error(err))
	}
}
