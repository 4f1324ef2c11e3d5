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
	"github.com/sponsorbridge/backend/internal/money"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
)

// Chain is the on-chain surface the escrow flow needs. The production
// implementation is internal/ton.Client.
type Chain interface {
	GenerateWallet() (mnemonic, addr string, err error)
	GetBalance(ctx context.Context, addr string) (money.Amount, error)
	Transfer(ctx context.Context, mnemonic, to string, amount money.Amount, comment string) (txID string, err error)
}

// gasReserve stays on the escrow wallet to pay for its own outgoing message.
var gasReserve = mustAmount("0.05")

func mustAmount(s string) money.Amount {
	a, err := money.FromDecimalString(s)
	if err != nil {
		panic(err)
	}
	return a
}

type EscrowService struct {
	store        *repositories.Store
	deals        *repositories.DealRepo
	users        *repositories.UserRepo
	disputes     *repositories.DisputeRepo
	transfers    *repositories.TransferRepo
	transactions *repositories.TransactionRepo
	events       *repositories.EventRepo
	chain        Chain
	cipher       *privacy.FieldCipher
	publisher    notify.Publisher
	cfg          *config.Config
	log          *zap.Logger
}

func NewEscrowService(
	store *repositories.Store,
	deals *repositories.DealRepo,
	users *repositories.UserRepo,
	disputes *repositories.DisputeRepo,
	transfers *repositories.TransferRepo,
	transactions *repositories.TransactionRepo,
	events *repositories.EventRepo,
	chain Chain,
	cipher *privacy.FieldCipher,
	publisher notify.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		store: store, deals: deals, users: users, disputes: disputes,
		transfers: transfers, transactions: transactions, events: events,
		chain: chain, cipher: cipher, publisher: publisher, cfg: cfg, log: log,
	}
}

// EnsureEscrow assigns a dedicated deposit wallet to the deal if it does not
// have one yet. The mnemonic is stored encrypted; losing the key loses the
// funds, so assignment is write-once.
func (s *EscrowService) EnsureEscrow(ctx context.Context, d *models.Deal) error {
	if d.EscrowAddress != nil {
		return nil
	}

	mnemonic, addr, err := s.chain.GenerateWallet()
	if err != nil {
		return fmt.Errorf("generate escrow wallet: %w", err)
	}
	encrypted, err := s.cipher.Encrypt(mnemonic)
	if err != nil {
		return fmt.Errorf("encrypt escrow key: %w", err)
	}

	if err := s.deals.SetEscrow(ctx, d.ID, addr, encrypted); err != nil {
		if apperr.IsConflict(err) {
			// Lost a race with another assignment; use the winner's.
			fresh, gerr := s.deals.GetByID(ctx, d.ID)
			if gerr != nil {
				return gerr
			}
			d.EscrowAddress = fresh.EscrowAddress
			d.EscrowKeyEncrypted = fresh.EscrowKeyEncrypted
			return nil
		}
		return err
	}
	d.EscrowAddress = &addr
	d.EscrowKeyEncrypted = &encrypted
	return nil
}

// CheckDeposit polls the escrow balance for a pending_payment deal and, once
// the full amount has arrived, advances it to creative_pending. Partial
// payments keep the deal waiting so the payer can send the remainder.
func (s *EscrowService) CheckDeposit(ctx context.Context, d *models.Deal) (bool, error) {
	if d.EscrowAddress == nil {
		return false, nil
	}

	expected, err := money.FromDecimalString(d.Amount)
	if err != nil {
		return false, err
	}
	balance, err := s.chain.GetBalance(ctx, *d.EscrowAddress)
	if err != nil {
		return false, err
	}
	if balance.Cmp(expected) < 0 {
		return false, nil
	}

	var funded bool
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.deals.LockByID(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.DealStatusPendingPayment {
			return nil
		}

		meta := map[string]any{"balance": balance.String()}
		if err := transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusFunded, EventPaymentReceived, nil, meta); err != nil {
			return err
		}
		if err := transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusCreativePending, EventAwaitingCreative, nil, nil); err != nil {
			return err
		}

		now := time.Now()
		if err := s.transactions.Create(ctx, tx, &models.Transaction{
			DealID:      d.ID,
			Type:        models.TxTypeDeposit,
			Amount:      balance.String(),
			ToAddress:   d.EscrowAddress,
			ConfirmedAt: &now,
		}); err != nil {
			return err
		}
		funded = true
		return nil
	})
	if err != nil || !funded {
		return false, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventPaymentReceived,
			Payload: map[string]any{"deal_id": d.ID, "amount": balance.String()},
		})
	}
	return true, nil
}

// Release pays the channel owner. The platform fee stays on the master
// wallet; the payout travels escrow -> master -> owner so the on-chain trail
// never links the two parties directly.
func (s *EscrowService) Release(ctx context.Context, dealID int64) error {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}
	if d.Status != models.DealStatusVerified && d.Status != models.DealStatusDisputed {
		return fmt.Errorf("deal %d not payable from %s: %w", dealID, d.Status, apperr.ErrInvalidTransition)
	}

	recipient, err := s.payoutAddress(ctx, d.ChannelOwnerID)
	if err != nil {
		return err
	}
	amount, err := money.FromDecimalString(d.Amount)
	if err != nil {
		return err
	}
	split, err := money.SubtractFee(amount, s.cfg.PlatformFeePercent)
	if err != nil {
		return err
	}

	return s.runSaga(ctx, &d.Deal, []sagaLeg{
		{sagaType: models.SagaRelease, recipient: recipient, amount: split.Payout},
	})
}

// Refund returns the full deposit to the advertiser. No fee is taken on
// refunds.
func (s *EscrowService) Refund(ctx context.Context, dealID int64) error {
	d, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}

	recipient, err := s.payoutAddress(ctx, d.AdvertiserUserID)
	if err != nil {
		return err
	}
	amount, err := money.FromDecimalString(d.Amount)
	if err != nil {
		return err
	}

	return s.runSaga(ctx, d, []sagaLeg{
		{sagaType: models.SagaRefund, recipient: recipient, amount: amount},
	})
}

// Split distributes a disputed pot: the fee comes off the top, the owner gets
// ownerPct of the remainder, the advertiser the rest.
func (s *EscrowService) Split(ctx context.Context, dealID int64, ownerPct int) error {
	if ownerPct <= 0 || ownerPct >= 100 {
		return fmt.Errorf("%w: split percent must be 1..99", apperr.ErrValidation)
	}

	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}

	ownerAddr, err := s.payoutAddress(ctx, d.ChannelOwnerID)
	if err != nil {
		return err
	}
	advertiserAddr, err := s.payoutAddress(ctx, d.AdvertiserUserID)
	if err != nil {
		return err
	}

	amount, err := money.FromDecimalString(d.Amount)
	if err != nil {
		return err
	}
	feeSplit, err := money.SubtractFee(amount, s.cfg.PlatformFeePercent)
	if err != nil {
		return err
	}
	ownerShare := feeSplit.Payout.MulPercent(ownerPct)
	advertiserShare := feeSplit.Payout.Sub(ownerShare)

	return s.runSaga(ctx, &d.Deal, []sagaLeg{
		{sagaType: models.SagaRelease, recipient: ownerAddr, amount: ownerShare},
		{sagaType: models.SagaRefund, recipient: advertiserAddr, amount: advertiserShare},
	})
}

func (s *EscrowService) payoutAddress(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.PayoutAddress == nil || *u.PayoutAddress == "" {
		return "", fmt.Errorf("%w: user %d has no payout address", apperr.ErrValidation, userID)
	}
	return *u.PayoutAddress, nil
}

type sagaLeg struct {
	sagaType  string
	recipient string
	amount    money.Amount
}

// runSaga executes the two-hop relay. Every step is recorded in
// pending_transfers before the chain sees it, so a crash anywhere resumes
// from the ledger: hop 1 is never re-sent, hop 2 is retried by the recovery
// worker. With no master wallet configured the payout degrades to a direct
// single-hop transfer.
func (s *EscrowService) runSaga(ctx context.Context, d *models.Deal, legs []sagaLeg) error {
	if d.EscrowAddress == nil || d.EscrowKeyEncrypted == nil {
		return fmt.Errorf("deal %d has no escrow: %w", d.ID, apperr.ErrConflict)
	}

	if open, err := s.transfers.GetOpenByDeal(ctx, d.ID); err != nil {
		return err
	} else if open != nil {
		return fmt.Errorf("transfer already in flight for deal %d: %w", d.ID, apperr.ErrConflict)
	}

	escrowMnemonic, err := s.cipher.Decrypt(*d.EscrowKeyEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt escrow key: %w", err)
	}

	pending := make([]*models.PendingTransfer, 0, len(legs))
	for _, leg := range legs {
		pt := &models.PendingTransfer{
			DealID:           d.ID,
			SagaType:         leg.sagaType,
			RecipientAddress: leg.recipient,
			Amount:           leg.amount.String(),
		}
		if err := s.transfers.Create(ctx, pt); err != nil {
			return err
		}
		pending = append(pending, pt)
	}

	if !s.cfg.RelayEnabled() {
		return s.runDirect(ctx, d, escrowMnemonic, legs, pending)
	}

	// Hop 1: sweep the escrow onto the master wallet.
	balance, err := s.chain.GetBalance(ctx, *d.EscrowAddress)
	if err != nil {
		s.recordFailure(ctx, pending, err)
		return err
	}
	sweep := balance.Sub(gasReserve)
	if !sweep.IsPositive() {
		err := fmt.Errorf("escrow balance %s too low to sweep: %w", balance.String(), apperr.ErrConflict)
		s.recordFailure(ctx, pending, err)
		return err
	}

	hop1, err := s.chain.Transfer(ctx, escrowMnemonic, s.cfg.MasterWalletAddress, sweep, fmt.Sprintf("deal-%d", d.ID))
	if err != nil {
		s.recordFailure(ctx, pending, err)
		return fmt.Errorf("saga hop 1: %w", err)
	}
	for _, pt := range pending {
		if err := s.transfers.SetHop1(ctx, pt.ID, hop1); err != nil {
			return err
		}
	}

	// Funds are off the escrow; the deal settles now even if hop 2 needs
	// retries.
	if err := s.finalizeDeal(ctx, d.ID, legs[0].sagaType); err != nil {
		s.log.Error("saga finalize failed", zap.Int64("deal_id", d.ID), zap.Error(err))
	}

	// Hop 2: master wallet to each recipient, no memo.
	for i, pt := range pending {
		if err := s.sendHop2(ctx, pt, legs[i].amount); err != nil {
			s.log.Error("saga hop 2 failed, recovery will retry",
				zap.Int64("deal_id", d.ID), zap.Int64("transfer_id", pt.ID), zap.Error(err))
		}
	}
	return nil
}

// runDirect is the single-hop dev fallback: escrow pays recipients directly.
func (s *EscrowService) runDirect(ctx context.Context, d *models.Deal, escrowMnemonic string, legs []sagaLeg, pending []*models.PendingTransfer) error {
	for i, pt := range pending {
		txID, err := s.chain.Transfer(ctx, escrowMnemonic, legs[i].recipient, legs[i].amount, "")
		if err != nil {
			s.recordFailure(ctx, []*models.PendingTransfer{pt}, err)
			return fmt.Errorf("direct transfer: %w", err)
		}
		if err := s.transfers.SetHop1(ctx, pt.ID, txID); err != nil {
			return err
		}
		if err := s.transfers.Complete(ctx, pt.ID, txID, time.Now()); err != nil {
			return err
		}
		s.recordTransaction(ctx, pt, d.EscrowAddress, txID)
	}
	return s.finalizeDeal(ctx, d.ID, legs[0].sagaType)
}

func (s *EscrowService) sendHop2(ctx context.Context, pt *models.PendingTransfer, amount money.Amount) error {
	hop2, err := s.chain.Transfer(ctx, s.cfg.MasterWalletMnemonic, pt.RecipientAddress, amount, "")
	if err != nil {
		if ferr := s.transfers.RecordFailure(ctx, pt.ID, err.Error()); ferr != nil {
			s.log.Error("record transfer failure", zap.Int64("transfer_id", pt.ID), zap.Error(ferr))
		}
		return err
	}
	if err := s.transfers.Complete(ctx, pt.ID, hop2, time.Now()); err != nil {
		return err
	}
	s.recordTransaction(ctx, pt, &s.cfg.MasterWalletAddress, hop2)

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventPayoutCompleted,
			Payload: map[string]any{"deal_id": pt.DealID, "saga_type": pt.SagaType, "amount": pt.Amount},
		})
	}
	return nil
}

func (s *EscrowService) recordTransaction(ctx context.Context, pt *models.PendingTransfer, from *string, txID string) {
	txType := models.TxTypeRelease
	if pt.SagaType == models.SagaRefund {
		txType = models.TxTypeRefund
	}
	now := time.Now()
	err := s.transactions.Create(ctx, s.store.Pool(), &models.Transaction{
		DealID:      pt.DealID,
		Type:        txType,
		Amount:      pt.Amount,
		FromAddress: from,
		ToAddress:   &pt.RecipientAddress,
		ChainTxID:   &txID,
		ConfirmedAt: &now,
	})
	if err != nil {
		s.log.Error("record transaction", zap.Int64("deal_id", pt.DealID), zap.Error(err))
	}
}

func (s *EscrowService) recordFailure(ctx context.Context, pending []*models.PendingTransfer, cause error) {
	for _, pt := range pending {
		if err := s.transfers.RecordFailure(ctx, pt.ID, cause.Error()); err != nil {
			s.log.Error("record transfer failure", zap.Int64("transfer_id", pt.ID), zap.Error(err))
		}
	}
}

// finalizeDeal settles the deal's status once the escrow has been emptied.
// Already-settled deals (cancel-then-refund) pass through unchanged.
func (s *EscrowService) finalizeDeal(ctx context.Context, dealID int64, sagaType string) error {
	return s.store.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}

		switch d.Status {
		case models.DealStatusVerified:
			return transitionLocked(ctx, tx, s.deals, s.events, d,
				models.DealStatusCompleted, EventPayoutCompleted, nil, nil)

		case models.DealStatusDisputed:
			target := models.DealStatusCompleted
			event := EventPayoutCompleted
			if sagaType == models.SagaRefund {
				if dp, derr := s.disputes.GetByDeal(ctx, dealID); derr == nil &&
					dp.ResolvedOutcome != nil && *dp.ResolvedOutcome == models.OutcomeSplit {
					// Split legs settle the deal as completed.
					break
				}
				target = models.DealStatusRefunded
				event = EventRefundIssued
			}
			return transitionLocked(ctx, tx, s.deals, s.events, d, target, event, nil, nil)

		case models.DealStatusTimedOut, models.DealStatusFailed:
			return transitionLocked(ctx, tx, s.deals, s.events, d,
				models.DealStatusRefunded, EventRefundIssued, nil, nil)
		}
		return nil
	})
}

// RecoverPending re-drives hop 2 for transfers whose hop 1 already landed.
// Hop 1 is never re-sent: the money is on the master wallet, only the last
// mile failed.
func (s *EscrowService) RecoverPending(ctx context.Context) error {
	if !s.cfg.RelayEnabled() {
		return nil
	}

	transfers, err := s.transfers.ListRetryEligible(ctx, 50)
	if err != nil {
		return err
	}

	for i := range transfers {
		pt := &transfers[i]
		amount, err := money.FromDecimalString(pt.Amount)
		if err != nil {
			s.log.Error("unparseable transfer amount", zap.Int64("transfer_id", pt.ID), zap.Error(err))
			continue
		}
		if err := s.sendHop2(ctx, pt, amount); err != nil {
			continue
		}
		if err := s.finalizeDeal(ctx, pt.DealID, pt.SagaType); err != nil {
			s.log.Error("recovery finalize failed", zap.Int64("deal_id", pt.DealID), zap.Error(err))
		}
	}
	return nil
}

// Transactions lists the on-chain audit trail for a deal's party.
func (s *EscrowService) Transactions(ctx context.Context, dealID, userID int64, isAdmin bool) ([]models.Transaction, error) {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) && !isAdmin {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}
	return s.transactions.ListByDeal(ctx, dealID)
}
