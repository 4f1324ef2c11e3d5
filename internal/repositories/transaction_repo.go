package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorbridge/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Create(ctx context.Context, q Querier, t *models.Transaction) error {
	return q.QueryRow(ctx, `
		INSERT INTO transactions (deal_id, type, amount, from_address, to_address, chain_tx_id, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, t.DealID, t.Type, t.Amount, t.FromAddress, t.ToAddress, t.ChainTxID, t.ConfirmedAt).Scan(&t.ID, &t.CreatedAt)
}

func (r *TransactionRepo) ListByDeal(ctx context.Context, dealID int64) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, type, amount, from_address, to_address, chain_tx_id, confirmed_at, created_at
		FROM transactions WHERE deal_id = $1 ORDER BY id
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.DealID, &t.Type, &t.Amount, &t.FromAddress, &t.ToAddress,
			&t.ChainTxID, &t.ConfirmedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// PurgeSensitive nulls addresses and chain tx ids at purge time; the amount
// and type stay for accounting.
func (r *TransactionRepo) PurgeSensitive(ctx context.Context, tx Querier, dealID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET from_address = NULL, to_address = NULL, chain_tx_id = NULL WHERE deal_id = $1
	`, dealID)
	return err
}

// ---- Pending transfers (saga ledger) ----

type TransferRepo struct {
	pool *pgxpool.Pool
}

func NewTransferRepo(pool *pgxpool.Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

func (r *TransferRepo) Create(ctx context.Context, t *models.PendingTransfer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO pending_transfers (deal_id, saga_type, recipient_address, amount, retry_count)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, created_at
	`, t.DealID, t.SagaType, t.RecipientAddress, t.Amount).Scan(&t.ID, &t.CreatedAt)
}

func (r *TransferRepo) SetHop1(ctx context.Context, id int64, txID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE pending_transfers SET hop1_tx_id = $1 WHERE id = $2`, txID, id)
	return err
}

func (r *TransferRepo) Complete(ctx context.Context, id int64, hop2TxID string, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pending_transfers SET hop2_tx_id = $1, completed_at = $2 WHERE id = $3
	`, hop2TxID, completedAt, id)
	return err
}

func (r *TransferRepo) RecordFailure(ctx context.Context, id int64, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pending_transfers SET last_error = $1, retry_count = retry_count + 1 WHERE id = $2
	`, lastError, id)
	return err
}

// ListRetryEligible returns transfers whose hop 1 landed on chain but hop 2
// has not, within the retry budget. Hop 1 is never re-submitted.
func (r *TransferRepo) ListRetryEligible(ctx context.Context, limit int) ([]models.PendingTransfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, saga_type, recipient_address, amount,
		       hop1_tx_id, hop2_tx_id, retry_count, last_error, completed_at, created_at
		FROM pending_transfers
		WHERE hop1_tx_id IS NOT NULL AND hop2_tx_id IS NULL AND retry_count < $1
		ORDER BY created_at ASC LIMIT $2
	`, models.MaxTransferRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.PendingTransfer
	for rows.Next() {
		var t models.PendingTransfer
		if err := rows.Scan(&t.ID, &t.DealID, &t.SagaType, &t.RecipientAddress, &t.Amount,
			&t.Hop1TxID, &t.Hop2TxID, &t.RetryCount, &t.LastError, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// GetOpenByDeal returns the incomplete transfer for a deal, if any. Used to
// make release/refund idempotent at the saga level.
func (r *TransferRepo) GetOpenByDeal(ctx context.Context, dealID int64) (*models.PendingTransfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, saga_type, recipient_address, amount,
		       hop1_tx_id, hop2_tx_id, retry_count, last_error, completed_at, created_at
		FROM pending_transfers WHERE deal_id = $1 AND completed_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var t models.PendingTransfer
	if err := rows.Scan(&t.ID, &t.DealID, &t.SagaType, &t.RecipientAddress, &t.Amount,
		&t.Hop1TxID, &t.Hop2TxID, &t.RetryCount, &t.LastError, &t.CompletedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
