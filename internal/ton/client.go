package ton

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/money"
)

const (
	rpcAttempts         = 3
	confirmPollInterval = 3 * time.Second
	confirmDeadline     = 60 * time.Second
)

// Client talks to the TON network through two lite server pools. Reads go
// to the primary pool first and fail over to the fallback pool once the
// primary has burned through its share of the retry budget.
type Client struct {
	primary  ton.APIClientWrapped
	fallback ton.APIClientWrapped
	log      *zap.Logger
}

// Connect builds the lite server pools. The fallback pool degrades to the
// primary when no fallback config URL is set or it cannot be reached.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	primaryURL := cfg.TONConfigURL
	fallbackURL := cfg.TONConfigURLFallback
	if primaryURL == "" {
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			primaryURL = "https://ton.org/global.config.json"
		default:
			primaryURL = "https://ton.org/testnet-global.config.json"
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	primary, err := connectPool(ctx, primaryURL, proofPolicy, log)
	if err != nil {
		return nil, fmt.Errorf("connect primary pool: %w", err)
	}

	fallback := primary
	if fallbackURL != "" && fallbackURL != primaryURL {
		fb, err := connectPool(ctx, fallbackURL, proofPolicy, log)
		if err != nil {
			log.Warn("fallback pool unavailable, reusing primary", zap.String("url", fallbackURL), zap.Error(err))
		} else {
			fallback = fb
		}
	}

	return &Client{primary: primary, fallback: fallback, log: log}, nil
}

func connectPool(ctx context.Context, configURL string, policy ton.ProofCheckPolicy, log *zap.Logger) (ton.APIClientWrapped, error) {
	pool := liteclient.NewConnectionPool()
	log.Info("connecting to lite servers", zap.String("url", configURL))
	if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
		return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
	}
	return ton.NewAPIClient(pool, policy).WithRetry(), nil
}

// useFallback reports whether a zero-based retry attempt belongs to the back
// half of the attempt budget, which goes to the fallback pool. With three
// attempts the second one already fails over.
func useFallback(attempt int) bool {
	return attempt+1 >= (rpcAttempts+1)/2
}

// withRetry runs a read against the network. The front half of the attempts
// hits the primary pool, the rest the fallback; backoff doubles each attempt.
func (c *Client) withRetry(ctx context.Context, op string, fn func(api ton.APIClientWrapped) error) error {
	var lastErr error
	for attempt := 0; attempt < rpcAttempts; attempt++ {
		api := c.primary
		if useFallback(attempt) {
			api = c.fallback
		}

		if lastErr = fn(api); lastErr == nil {
			return nil
		}

		c.log.Warn("rpc attempt failed",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second << attempt):
		}
	}
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrRPCTransient, lastErr)
}

// GetBalance returns the confirmed balance of an address. An uninitialized
// account reads as zero.
func (c *Client) GetBalance(ctx context.Context, addrStr string) (money.Amount, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return money.Zero(), fmt.Errorf("%w: invalid address %s", apperr.ErrValidation, addrStr)
	}

	var balance money.Amount
	err = c.withRetry(ctx, "get balance", func(api ton.APIClientWrapped) error {
		block, err := api.CurrentMasterchainInfo(ctx)
		if err != nil {
			return err
		}
		account, err := api.GetAccount(ctx, block, addr)
		if err != nil {
			return err
		}
		if account == nil || !account.IsActive {
			balance = money.Zero()
			return nil
		}
		balance = money.FromNano(account.State.Balance.Nano())
		return nil
	})
	return balance, err
}

// seqno reads the wallet contract's sequence number. Uninitialized wallets
// have no code deployed yet and report seqno 0.
func (c *Client) seqno(ctx context.Context, addr *address.Address) (uint64, error) {
	var seq uint64
	err := c.withRetry(ctx, "get seqno", func(api ton.APIClientWrapped) error {
		block, err := api.CurrentMasterchainInfo(ctx)
		if err != nil {
			return err
		}
		account, err := api.GetAccount(ctx, block, addr)
		if err != nil {
			return err
		}
		if account == nil || !account.IsActive {
			seq = 0
			return nil
		}
		res, err := api.RunGetMethod(ctx, block, addr, "seqno")
		if err != nil {
			return err
		}
		n, err := res.Int(0)
		if err != nil {
			return err
		}
		seq = n.Uint64()
		return nil
	})
	return seq, err
}

// lastTxID returns the account's most recent transaction as "lt:hash".
func (c *Client) lastTxID(ctx context.Context, addr *address.Address) (string, error) {
	var txID string
	err := c.withRetry(ctx, "get last tx", func(api ton.APIClientWrapped) error {
		block, err := api.CurrentMasterchainInfo(ctx)
		if err != nil {
			return err
		}
		account, err := api.GetAccount(ctx, block, addr)
		if err != nil {
			return err
		}
		if account == nil || account.LastTxLT == 0 {
			txID = ""
			return nil
		}
		txID = fmt.Sprintf("%d:%x", account.LastTxLT, account.LastTxHash)
		return nil
	})
	return txID, err
}

// ValidateAddress checks that a string parses as a TON address.
func ValidateAddress(addrStr string) error {
	if _, err := address.ParseAddr(strings.TrimSpace(addrStr)); err != nil {
		return fmt.Errorf("%w: invalid TON address", apperr.ErrValidation)
	}
	return nil
}
