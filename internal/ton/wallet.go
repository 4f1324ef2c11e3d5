package ton

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/money"
)

// GenerateWallet creates a fresh V4R2 wallet and returns its mnemonic and
// address. The contract deploys lazily on first outgoing transfer, so the
// address is usable as a deposit target immediately.
func (c *Client) GenerateWallet() (mnemonic, addr string, err error) {
	seed := wallet.NewSeed()
	w, err := wallet.FromSeed(c.primary, seed, wallet.V4R2)
	if err != nil {
		return "", "", fmt.Errorf("derive wallet: %w", err)
	}
	return strings.Join(seed, " "), w.WalletAddress().String(), nil
}

// Transfer sends amount from the wallet behind mnemonic to toAddr and waits
// for the wallet's seqno to advance before reporting success. The returned
// tx id is the sender's resulting "lt:hash".
//
// A resend on a different pool reuses the same seqno, so the contract
// accepts at most one of the two messages.
func (c *Client) Transfer(ctx context.Context, mnemonic, toAddr string, amount money.Amount, comment string) (string, error) {
	seed := strings.Fields(mnemonic)
	if len(seed) != 24 {
		return "", fmt.Errorf("%w: malformed wallet seed", apperr.ErrValidation)
	}

	to, err := address.ParseAddr(toAddr)
	if err != nil {
		return "", fmt.Errorf("%w: invalid destination address", apperr.ErrValidation)
	}
	// Escrow wallets may be uninitialized; a bounced payout would strand
	// the funds on the sender.
	to = to.Bounce(false)

	coins, err := tlb.FromNano(amount.ToNano(), money.NanoScale)
	if err != nil {
		return "", fmt.Errorf("%w: amount out of range", apperr.ErrValidation)
	}

	w, err := wallet.FromSeed(c.primary, seed, wallet.V4R2)
	if err != nil {
		return "", fmt.Errorf("derive wallet: %w", err)
	}
	from := w.WalletAddress()

	before, err := c.seqno(ctx, from)
	if err != nil {
		return "", err
	}

	if err := w.Transfer(ctx, to, coins, comment); err != nil {
		c.log.Warn("transfer submit failed on primary, retrying on fallback",
			zap.String("from", from.String()), zap.Error(err))
		fw, ferr := wallet.FromSeed(c.fallback, seed, wallet.V4R2)
		if ferr != nil {
			return "", fmt.Errorf("derive wallet: %w", ferr)
		}
		if ferr := fw.Transfer(ctx, to, coins, comment); ferr != nil {
			return "", fmt.Errorf("submit transfer: %w: %v", apperr.ErrRPCTransient, ferr)
		}
	}

	if err := c.waitSeqnoAdvance(ctx, from, before); err != nil {
		return "", err
	}
	return c.lastTxID(ctx, from)
}

// waitSeqnoAdvance polls the sender wallet until its seqno moves past the
// pre-send value or the confirmation window closes.
func (c *Client) waitSeqnoAdvance(ctx context.Context, addr *address.Address, before uint64) error {
	deadline := time.NewTimer(confirmDeadline)
	defer deadline.Stop()
	tick := time.NewTicker(confirmPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("transfer from %s: %w", addr.String(), apperr.ErrConfirmationTimeout)
		case <-tick.C:
			seq, err := c.seqno(ctx, addr)
			if err != nil {
				c.log.Warn("seqno poll failed", zap.String("addr", addr.String()), zap.Error(err))
				continue
			}
			if seq > before {
				return nil
			}
		}
	}
}
