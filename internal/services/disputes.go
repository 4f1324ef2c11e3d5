package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/repositories"
)

type DisputeService struct {
	store     *repositories.Store
	deals     *repositories.DealRepo
	disputes  *repositories.DisputeRepo
	events    *repositories.EventRepo
	escrow    *EscrowService
	publisher notify.Publisher
	log       *zap.Logger
}

func NewDisputeService(
	store *repositories.Store,
	deals *repositories.DealRepo,
	disputes *repositories.DisputeRepo,
	events *repositories.EventRepo,
	escrow *EscrowService,
	publisher notify.Publisher,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		store: store, deals: deals, disputes: disputes, events: events,
		escrow: escrow, publisher: publisher, log: log,
	}
}

// Open freezes a deal into disputed and starts the 48h mutual-resolution
// window. One dispute per deal, ever.
func (s *DisputeService) Open(ctx context.Context, dealID, userID int64, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", apperr.ErrValidation)
	}

	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	dispute := &models.Dispute{
		DealID:         dealID,
		OpenedByUserID: userID,
		Reason:         reason,
		Status:         models.DisputeOpen,
		MutualDeadline: time.Now().Add(models.MutualResolutionWindow),
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if err := transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusDisputed, EventDisputeOpened, &userID,
			map[string]any{"reason": reason}); err != nil {
			return err
		}
		return s.disputes.Create(ctx, tx, dispute)
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventDisputeOpened,
			Payload: map[string]any{"deal_id": dealID, "dispute_id": dispute.ID},
		})
	}
	return dispute, nil
}

// Get returns a dispute with its evidence, visible to parties and admins.
func (s *DisputeService) Get(ctx context.Context, dealID, userID int64, isAdmin bool) (*models.Dispute, []models.DisputeEvidence, error) {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, nil, err
	}
	if !d.IsParty(userID) && !isAdmin {
		return nil, nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	dispute, err := s.disputes.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, nil, err
	}
	evidence, err := s.disputes.ListEvidence(ctx, dispute.ID)
	if err != nil {
		return nil, nil, err
	}
	return dispute, evidence, nil
}

// AddEvidence attaches a party's supporting material to an unresolved dispute.
func (s *DisputeService) AddEvidence(ctx context.Context, dealID, userID int64, description string, url *string) (*models.DisputeEvidence, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: evidence description is required", apperr.ErrValidation)
	}

	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	dispute, err := s.disputes.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == models.DisputeResolved {
		return nil, fmt.Errorf("dispute %d is resolved: %w", dispute.ID, apperr.ErrConflict)
	}

	ev := &models.DisputeEvidence{
		DisputeID:   dispute.ID,
		UserID:      userID,
		Description: description,
		URL:         url,
	}
	if err := s.disputes.AddEvidence(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Propose records a party's preferred outcome during the mutual window. When
// both sides have proposed the same outcome (and, for splits, the same
// percentage) the dispute resolves without an admin.
func (s *DisputeService) Propose(ctx context.Context, dealID, userID int64, outcome string, splitPct *int) (*models.Dispute, error) {
	if !models.IsValidOutcome(outcome) {
		return nil, fmt.Errorf("%w: unknown outcome %q", apperr.ErrValidation, outcome)
	}
	if outcome == models.OutcomeSplit {
		if splitPct == nil || *splitPct <= 0 || *splitPct >= 100 {
			return nil, fmt.Errorf("%w: split outcome needs a 1..99 percent", apperr.ErrValidation)
		}
	} else {
		splitPct = nil
	}

	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	dispute, err := s.disputes.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeOpen && dispute.Status != models.DisputeMutualResolution {
		return nil, fmt.Errorf("dispute %d is past mutual resolution: %w", dispute.ID, apperr.ErrConflict)
	}

	isOwner := d.ChannelOwnerID == userID
	if isOwner {
		err = s.disputes.SetOwnerProposal(ctx, dispute.ID, outcome, splitPct)
		dispute.OwnerProposal = &outcome
		dispute.OwnerSplitPercent = splitPct
	} else {
		err = s.disputes.SetAdvertiserProposal(ctx, dispute.ID, outcome, splitPct)
		dispute.AdvertiserProposal = &outcome
		dispute.AdvertiserSplitPct = splitPct
	}
	if err != nil {
		return nil, err
	}

	if agreed, pct, ok := dispute.Agreement(); ok {
		if err := s.resolve(ctx, dispute, agreed, pct, nil, nil); err != nil {
			return nil, err
		}
	} else if dispute.Status == models.DisputeOpen {
		// First proposal moves the dispute into mutual resolution.
		if err := s.disputes.MarkMutual(ctx, dispute.ID); err != nil {
			return nil, err
		}
	}

	return s.disputes.GetByID(ctx, dispute.ID)
}

// Accept adopts the counterparty's existing proposal as the resolution,
// sparing the accepting party from re-typing a matching proposal.
func (s *DisputeService) Accept(ctx context.Context, dealID, userID int64) (*models.Dispute, error) {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	dispute, err := s.disputes.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeOpen && dispute.Status != models.DisputeMutualResolution {
		return nil, fmt.Errorf("dispute %d is past mutual resolution: %w", dispute.ID, apperr.ErrConflict)
	}

	isOwner := d.ChannelOwnerID == userID
	outcome, splitPct, found := dispute.CounterProposal(isOwner)
	if !found {
		return nil, fmt.Errorf("%w: the other party has not proposed a resolution", apperr.ErrConflict)
	}

	// Mirror the proposal so the record shows both sides agreed.
	if isOwner {
		err = s.disputes.SetOwnerProposal(ctx, dispute.ID, outcome, splitPct)
	} else {
		err = s.disputes.SetAdvertiserProposal(ctx, dispute.ID, outcome, splitPct)
	}
	if err != nil {
		return nil, err
	}

	if err := s.resolve(ctx, dispute, outcome, splitPct, nil, nil); err != nil {
		return nil, err
	}
	return s.disputes.GetByID(ctx, dispute.ID)
}

// AdminResolve imposes an outcome on a dispute that escalated past the
// mutual window.
func (s *DisputeService) AdminResolve(ctx context.Context, dealID, adminUserID int64, outcome string, splitPct *int, reason string) (*models.Dispute, error) {
	if !models.IsValidOutcome(outcome) {
		return nil, fmt.Errorf("%w: unknown outcome %q", apperr.ErrValidation, outcome)
	}
	if outcome == models.OutcomeSplit && (splitPct == nil || *splitPct <= 0 || *splitPct >= 100) {
		return nil, fmt.Errorf("%w: split outcome needs a 1..99 percent", apperr.ErrValidation)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: resolution reason is required", apperr.ErrValidation)
	}

	dispute, err := s.disputes.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	// The 48h mutual window belongs to the parties; an admin only steps in
	// after the escalator moves the dispute to admin review.
	if dispute.Status != models.DisputeAdminReview {
		return nil, fmt.Errorf("dispute %d has not escalated to admin review: %w", dispute.ID, apperr.ErrConflict)
	}

	if err := s.resolve(ctx, dispute, outcome, splitPct, &adminUserID, &reason); err != nil {
		return nil, err
	}
	return s.disputes.GetByID(ctx, dispute.ID)
}

// resolve marks the dispute resolved and moves the money. The deal leaves
// disputed as a side effect of the payout saga.
func (s *DisputeService) resolve(ctx context.Context, dispute *models.Dispute, outcome string, splitPct *int, resolvedBy *int64, reason *string) error {
	if err := s.disputes.MarkResolved(ctx, dispute.ID, outcome, splitPct, resolvedBy, reason); err != nil {
		return err
	}

	err := s.events.Append(ctx, s.store.Pool(), &models.DealEvent{
		DealID:      dispute.DealID,
		EventType:   EventDisputeResolved,
		ActorUserID: resolvedBy,
		Metadata:    map[string]any{"outcome": outcome},
	})
	if err != nil {
		s.log.Warn("event append failed", zap.Int64("deal_id", dispute.DealID), zap.Error(err))
	}

	switch outcome {
	case models.OutcomeReleaseToOwner:
		err = s.escrow.Release(ctx, dispute.DealID)
	case models.OutcomeRefundToAdvertiser:
		err = s.escrow.Refund(ctx, dispute.DealID)
	case models.OutcomeSplit:
		err = s.escrow.Split(ctx, dispute.DealID, *splitPct)
	}
	if err != nil {
		// The dispute stays resolved; payout retries ride the saga ledger
		// or the next admin action.
		s.log.Error("dispute payout failed",
			zap.Int64("deal_id", dispute.DealID), zap.String("outcome", outcome), zap.Error(err))
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventDisputeResolved,
			Payload: map[string]any{"deal_id": dispute.DealID, "outcome": outcome},
		})
	}
	return nil
}

// EscalateExpired moves disputes past their mutual window into admin review.
func (s *DisputeService) EscalateExpired(ctx context.Context) (int, error) {
	expired, err := s.disputes.ListExpiredMutual(ctx, 50)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range expired {
		if err := s.disputes.MarkEscalated(ctx, expired[i].ID, time.Now()); err != nil {
			s.log.Error("escalate dispute", zap.Int64("dispute_id", expired[i].ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// ListForAdmin returns disputes awaiting admin review.
func (s *DisputeService) ListForAdmin(ctx context.Context, status string, limit int) ([]models.Dispute, error) {
	if status == "" {
		status = models.DisputeAdminReview
	}
	return s.disputes.ListByStatus(ctx, status, limit)
}
