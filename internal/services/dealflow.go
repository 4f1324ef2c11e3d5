package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
)

// Deal event types recorded in the status ledger.
const (
	EventDealCreated      = "deal_created"
	EventPaymentReceived  = "payment_received"
	EventAwaitingCreative = "awaiting_creative"
	EventCreativeAction   = "creative_action"
	EventPostProof        = "post_proof_submitted"
	EventTrackingStarted  = "tracking_started"
	EventRequirementsMet  = "requirements_met"
	EventWindowExpired    = "verification_window_expired"
	EventPayoutCompleted  = "payout_completed"
	EventRefundIssued     = "refund_issued"
	EventDealCancelled    = "deal_cancelled"
	EventDealTimedOut     = "deal_timed_out"
	EventDisputeOpened    = "dispute_opened"
	EventDisputeResolved  = "dispute_resolved"
	EventWaived           = "requirement_waived"
	EventConfirmed        = "requirement_confirmed"
)

const (
	minVerificationWindowHours = 1
	maxVerificationWindowHours = 720
	maxRequirementsPerDeal     = 10
)

type DealService struct {
	store        *repositories.Store
	deals        *repositories.DealRepo
	channels     *repositories.ChannelRepo
	users        *repositories.UserRepo
	requirements *repositories.RequirementRepo
	events       *repositories.EventRepo
	escrow       *EscrowService
	publisher    notify.Publisher
	cfg          *config.Config
	log          *zap.Logger
}

func NewDealService(
	store *repositories.Store,
	deals *repositories.DealRepo,
	channels *repositories.ChannelRepo,
	users *repositories.UserRepo,
	requirements *repositories.RequirementRepo,
	events *repositories.EventRepo,
	escrow *EscrowService,
	publisher notify.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DealService {
	return &DealService{
		store: store, deals: deals, channels: channels, users: users,
		requirements: requirements, events: events, escrow: escrow,
		publisher: publisher, cfg: cfg, log: log,
	}
}

// transitionLocked applies one edge of the state machine to a deal whose row
// lock the caller already holds. The event row commits with the status write.
func transitionLocked(
	ctx context.Context,
	tx repositories.Querier,
	deals *repositories.DealRepo,
	events *repositories.EventRepo,
	d *models.Deal,
	to, eventType string,
	actorUserID *int64,
	meta map[string]any,
) error {
	if !models.IsValidTransition(d.Status, to) {
		return fmt.Errorf("deal %d: %s -> %s: %w", d.ID, d.Status, to, apperr.ErrInvalidTransition)
	}

	now := time.Now()
	timeoutAt := models.TimeoutFor(to, now)
	var completedAt *time.Time
	if models.IsSettled(to) {
		completedAt = &now
	}

	if err := deals.UpdateStatus(ctx, tx, d.ID, to, timeoutAt, completedAt); err != nil {
		return err
	}

	from := d.Status
	ev := &models.DealEvent{
		DealID:      d.ID,
		EventType:   eventType,
		OldStatus:   &from,
		NewStatus:   &to,
		ActorUserID: actorUserID,
		Metadata:    meta,
	}
	if err := events.Append(ctx, tx, ev); err != nil {
		return err
	}

	d.Status = to
	d.TimeoutAt = timeoutAt
	if completedAt != nil && d.CompletedAt == nil {
		d.CompletedAt = completedAt
	}
	return nil
}

// Transition moves a deal through one edge under its row lock.
func (s *DealService) Transition(ctx context.Context, dealID int64, to, eventType string, actorUserID *int64, meta map[string]any) (*models.Deal, error) {
	var updated *models.Deal
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if err := transitionLocked(ctx, tx, s.deals, s.events, d, to, eventType, actorUserID, meta); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(ctx, updated, eventType)
	return updated, nil
}

func (s *DealService) publishStatus(ctx context.Context, d *models.Deal, eventType string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
		Type: notify.EventDealStatusChanged,
		Payload: map[string]any{
			"deal_id":    d.ID,
			"status":     d.Status,
			"event_type": eventType,
		},
	})
}

type RequirementInput struct {
	MetricType  string `json:"metric_type"`
	TargetValue int64  `json:"target_value"`
}

type CreateDealInput struct {
	AdFormatID              int64              `json:"ad_format_id"`
	VerificationWindowHours int                `json:"verification_window_hours"`
	Requirements            []RequirementInput `json:"requirements"`
}

// CreateDeal opens a deal against a channel's ad format. The deal starts in
// pending_payment with a fresh escrow address; both parties are known only by
// alias on the public record.
func (s *DealService) CreateDeal(ctx context.Context, advertiserUserID int64, in CreateDealInput) (*models.Deal, error) {
	format, err := s.channels.GetFormat(ctx, in.AdFormatID)
	if err != nil {
		return nil, err
	}
	if !format.Active {
		return nil, fmt.Errorf("%w: ad format is not active", apperr.ErrValidation)
	}

	channel, err := s.channels.GetByID(ctx, format.ChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.Verified {
		return nil, fmt.Errorf("%w: channel is not verified", apperr.ErrValidation)
	}
	if channel.OwnerUserID == advertiserUserID {
		return nil, fmt.Errorf("cannot open a deal with your own channel: %w", apperr.ErrForbidden)
	}

	window := in.VerificationWindowHours
	if window == 0 {
		window = s.cfg.VerifyHoldHours
	}
	if window < minVerificationWindowHours || window > maxVerificationWindowHours {
		return nil, fmt.Errorf("%w: verification window must be %d..%d hours",
			apperr.ErrValidation, minVerificationWindowHours, maxVerificationWindowHours)
	}

	reqs, err := normalizeRequirements(in.Requirements)
	if err != nil {
		return nil, err
	}

	ownerAlias, err := privacy.GenerateAlias("owner")
	if err != nil {
		return nil, err
	}
	advertiserAlias, err := privacy.GenerateAlias("advertiser")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	deal := &models.Deal{
		ChannelID:               channel.ID,
		AdvertiserUserID:        advertiserUserID,
		AdFormatID:              format.ID,
		Status:                  models.DealStatusPendingPayment,
		Amount:                  format.Price,
		OwnerAlias:              ownerAlias,
		AdvertiserAlias:         advertiserAlias,
		TimeoutAt:               models.TimeoutFor(models.DealStatusPendingPayment, now),
		VerificationWindowHours: window,
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.deals.Create(ctx, tx, deal); err != nil {
			return err
		}
		for i := range reqs {
			reqs[i].DealID = deal.ID
			if err := s.requirements.Create(ctx, tx, &reqs[i]); err != nil {
				return err
			}
		}
		return s.events.Append(ctx, tx, &models.DealEvent{
			DealID:      deal.ID,
			EventType:   EventDealCreated,
			NewStatus:   &deal.Status,
			ActorUserID: &advertiserUserID,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.escrow.EnsureEscrow(ctx, deal); err != nil {
		// The deal exists; escrow assignment is retried when the
		// advertiser asks for payment details.
		s.log.Error("escrow assignment failed", zap.Int64("deal_id", deal.ID), zap.Error(err))
	}

	s.publishStatus(ctx, deal, EventDealCreated)
	return deal, nil
}

// normalizeRequirements validates the requested requirements and guarantees a
// post_exists check is always present.
func normalizeRequirements(in []RequirementInput) ([]models.DealRequirement, error) {
	if len(in) > maxRequirementsPerDeal {
		return nil, fmt.Errorf("%w: at most %d requirements per deal", apperr.ErrValidation, maxRequirementsPerDeal)
	}

	var out []models.DealRequirement
	hasPostExists := false
	seen := map[string]bool{}
	for _, r := range in {
		if !models.IsValidMetricType(r.MetricType) {
			return nil, fmt.Errorf("%w: unknown metric type %q", apperr.ErrValidation, r.MetricType)
		}
		if seen[r.MetricType] && r.MetricType != models.MetricCustom {
			return nil, fmt.Errorf("%w: duplicate metric type %q", apperr.ErrValidation, r.MetricType)
		}
		seen[r.MetricType] = true

		target := r.TargetValue
		switch r.MetricType {
		case models.MetricPostExists:
			hasPostExists = true
			target = 1
		case models.MetricCustom:
			if target <= 0 {
				target = 1
			}
		default:
			if target <= 0 {
				return nil, fmt.Errorf("%w: %s target must be positive", apperr.ErrValidation, r.MetricType)
			}
		}

		out = append(out, models.DealRequirement{
			MetricType:  r.MetricType,
			TargetValue: target,
			Status:      models.RequirementPending,
		})
	}

	if !hasPostExists {
		out = append(out, models.DealRequirement{
			MetricType:  models.MetricPostExists,
			TargetValue: 1,
			Status:      models.RequirementPending,
		})
	}
	return out, nil
}

// GetDeal returns a deal to one of its parties or an admin.
func (s *DealService) GetDeal(ctx context.Context, dealID, userID int64, isAdmin bool) (*models.DealWithChannel, error) {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) && !isAdmin {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}
	return d, nil
}

// ListDeals returns the deals where the user is a party, on either side.
func (s *DealService) ListDeals(ctx context.Context, userID int64, side string, status *string, limit, offset int) ([]models.DealWithChannel, error) {
	f := repositories.DealFilter{Status: status, Limit: limit, Offset: offset}
	switch side {
	case "owner":
		f.OwnerUserID = &userID
	case "advertiser":
		f.AdvertiserUserID = &userID
	default:
		return nil, fmt.Errorf("%w: side must be owner or advertiser", apperr.ErrValidation)
	}
	return s.deals.List(ctx, f)
}

// Cancel ends a deal before posting. Either party may cancel; once funds are
// on the escrow they travel back to the advertiser through the relay.
func (s *DealService) Cancel(ctx context.Context, dealID, userID int64) (*models.Deal, error) {
	dwc, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !dwc.IsParty(userID) {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	var updated *models.Deal
	var hadFunds bool
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		hadFunds = d.Status != models.DealStatusPendingPayment
		if err := transitionLocked(ctx, tx, s.deals, s.events, d,
			models.DealStatusCancelled, EventDealCancelled, &userID, nil); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(ctx, updated, EventDealCancelled)

	if hadFunds {
		if err := s.escrow.Refund(ctx, dealID); err != nil {
			s.log.Error("cancel refund failed", zap.Int64("deal_id", dealID), zap.Error(err))
		}
	}
	return updated, nil
}

// SweepTimeouts moves deals past their stage deadline into timed_out and
// refunds any held funds. Called by the timeout worker.
func (s *DealService) SweepTimeouts(ctx context.Context, limit int) (int, error) {
	expired, err := s.deals.ListTimedOut(ctx, limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range expired {
		dealID := expired[i].ID
		var timedOut, hadFunds bool
		err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
			d, err := s.deals.LockByID(ctx, tx, dealID)
			if err != nil {
				return err
			}
			// Re-check under the lock; another worker may have moved it.
			if d.TimeoutAt == nil || d.TimeoutAt.After(time.Now()) || models.IsSettled(d.Status) {
				return nil
			}
			hadFunds = d.Status != models.DealStatusPendingPayment
			if err := transitionLocked(ctx, tx, s.deals, s.events, d,
				models.DealStatusTimedOut, EventDealTimedOut, nil, nil); err != nil {
				return err
			}
			timedOut = true
			return nil
		})
		if err != nil {
			s.log.Error("timeout sweep", zap.Int64("deal_id", dealID), zap.Error(err))
			continue
		}
		if !timedOut {
			continue
		}
		n++
		if hadFunds {
			if err := s.escrow.Refund(ctx, dealID); err != nil {
				s.log.Error("timeout refund failed", zap.Int64("deal_id", dealID), zap.Error(err))
			}
		}
	}
	return n, nil
}

// Requirements lists the requirement rows for a deal the user can see.
func (s *DealService) Requirements(ctx context.Context, dealID, userID int64, isAdmin bool) ([]models.DealRequirement, error) {
	if _, err := s.GetDeal(ctx, dealID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.requirements.ListByDeal(ctx, dealID)
}

// requirementWaivable reports whether a deal's requirements may still be
// waived. Waiving only makes sense once metrics are being tracked, or after
// the window closed short and the advertiser accepts the result anyway.
// A failed deal never auto-advances: maybeVerify promotes tracking deals
// only, so a post-failure waive just unblocks dispute or admin resolution.
func requirementWaivable(status string) bool {
	return status == models.DealStatusTracking || status == models.DealStatusFailed
}

// WaiveRequirement lets the advertiser drop a requirement. Met requirements
// cannot be waived; waived status latches.
func (s *DealService) WaiveRequirement(ctx context.Context, dealID, reqID, userID int64) error {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}
	if d.AdvertiserUserID != userID {
		return fmt.Errorf("only the advertiser can waive requirements: %w", apperr.ErrForbidden)
	}
	if !requirementWaivable(d.Status) {
		return fmt.Errorf("deal %d: requirements can be waived only while tracking or after a failed window: %w",
			dealID, apperr.ErrConflict)
	}

	req, err := s.requirements.GetByID(ctx, reqID)
	if err != nil {
		return err
	}
	if req.DealID != dealID {
		return fmt.Errorf("requirement: %w", apperr.ErrNotFound)
	}

	if err := s.requirements.MarkWaived(ctx, reqID); err != nil {
		return err
	}
	s.logRequirementEvent(ctx, dealID, EventWaived, userID, req.MetricType)
	return s.maybeVerify(ctx, dealID)
}

// ConfirmRequirement lets the advertiser mark a custom requirement met.
func (s *DealService) ConfirmRequirement(ctx context.Context, dealID, reqID, userID int64) error {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}
	if d.AdvertiserUserID != userID {
		return fmt.Errorf("only the advertiser can confirm requirements: %w", apperr.ErrForbidden)
	}

	req, err := s.requirements.GetByID(ctx, reqID)
	if err != nil {
		return err
	}
	if req.DealID != dealID {
		return fmt.Errorf("requirement: %w", apperr.ErrNotFound)
	}
	if req.MetricType != models.MetricCustom {
		return fmt.Errorf("%w: only custom requirements are confirmed manually", apperr.ErrValidation)
	}

	if err := s.requirements.MarkConfirmed(ctx, reqID, req.TargetValue, time.Now()); err != nil {
		return err
	}
	s.logRequirementEvent(ctx, dealID, EventConfirmed, userID, req.MetricType)
	return s.maybeVerify(ctx, dealID)
}

func (s *DealService) logRequirementEvent(ctx context.Context, dealID int64, eventType string, userID int64, metric string) {
	err := s.events.Append(ctx, s.store.Pool(), &models.DealEvent{
		DealID:      dealID,
		EventType:   eventType,
		ActorUserID: &userID,
		Metadata:    map[string]any{"metric_type": metric},
	})
	if err != nil {
		s.log.Warn("event append failed", zap.Int64("deal_id", dealID), zap.Error(err))
	}
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventRequirementUpdated,
			Payload: map[string]any{"deal_id": dealID, "metric_type": metric, "event": eventType},
		})
	}
}

// maybeVerify promotes a tracking deal to verified when nothing blocks
// verification anymore, then hands it to the payout flow.
func (s *DealService) maybeVerify(ctx context.Context, dealID int64) error {
	reqs, err := s.requirements.ListByDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if !AllSatisfied(reqs) {
		return nil
	}

	var verified bool
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if d.Status != models.DealStatusTracking {
			return nil
		}
		if err := transitionLocked(ctx, tx, s.deals, s.events, d,
			models.DealStatusVerified, EventRequirementsMet, nil, nil); err != nil {
			return err
		}
		verified = true
		return nil
	})
	if err != nil || !verified {
		return err
	}

	if err := s.escrow.Release(ctx, dealID); err != nil {
		// Stays verified; the tracker loop retries the payout.
		s.log.Error("release after verification failed", zap.Int64("deal_id", dealID), zap.Error(err))
	}
	return nil
}

// Events returns a deal's status ledger.
func (s *DealService) Events(ctx context.Context, dealID, userID int64, isAdmin bool) ([]models.DealEvent, error) {
	if _, err := s.GetDeal(ctx, dealID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.events.ListByDeal(ctx, dealID, 0)
}

// Stats returns the public platform aggregate.
func (s *DealService) Stats(ctx context.Context) (*repositories.PlatformStats, error) {
	return s.deals.GetPlatformStats(ctx)
}
