package models

import "time"

// Transaction types
const (
	TxTypeDeposit = "deposit"
	TxTypeRelease = "release"
	TxTypeRefund  = "refund"
)

// Transaction is the audit record of an on-chain operation.
type Transaction struct {
	ID          int64      `json:"id"`
	DealID      int64      `json:"deal_id"`
	Type        string     `json:"type"`
	Amount      string     `json:"amount"`
	FromAddress *string    `json:"from_address,omitempty"`
	ToAddress   *string    `json:"to_address,omitempty"`
	ChainTxID   *string    `json:"chain_tx_id,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Saga types for pending transfers
const (
	SagaRelease = "release"
	SagaRefund  = "refund"
)

// MaxTransferRetries caps hop-2 re-attempts by the recovery worker.
const MaxTransferRetries = 5

// PendingTransfer is the durable saga record for the two-hop payout relay.
// The table IS the continuation: recovery scans it instead of resuming any
// in-memory state. Invariant: Hop2TxID set <=> CompletedAt set.
type PendingTransfer struct {
	ID               int64      `json:"id"`
	DealID           int64      `json:"deal_id"`
	SagaType         string     `json:"saga_type"`
	RecipientAddress string     `json:"recipient_address"`
	Amount           string     `json:"amount"`
	Hop1TxID         *string    `json:"hop1_tx_id,omitempty"`
	Hop2TxID         *string    `json:"hop2_tx_id,omitempty"`
	RetryCount       int        `json:"retry_count"`
	LastError        *string    `json:"last_error,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RetryEligible reports whether the recovery worker may re-attempt hop 2.
func (p *PendingTransfer) RetryEligible() bool {
	return p.Hop1TxID != nil && p.Hop2TxID == nil && p.RetryCount < MaxTransferRetries
}
