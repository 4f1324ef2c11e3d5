package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
)

type ReceiptRepo struct {
	pool *pgxpool.Pool
}

func NewReceiptRepo(pool *pgxpool.Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

// Create inserts the receipt inside the purge transaction. The unique key on
// deal_id makes a second purge of the same deal fail loudly.
func (r *ReceiptRepo) Create(ctx context.Context, tx Querier, rec *models.DealReceipt) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO deal_receipts (deal_id, channel_title, owner_alias, advertiser_alias,
		                           amount, final_status, completed_at, data_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, rec.DealID, rec.ChannelTitle, rec.OwnerAlias, rec.AdvertiserAlias,
		rec.Amount, rec.FinalStatus, rec.CompletedAt, rec.DataHash).Scan(&rec.ID, &rec.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("receipt already exists for deal %d: %w", rec.DealID, apperr.ErrConflict)
	}
	return err
}

func (r *ReceiptRepo) GetByDeal(ctx context.Context, dealID int64) (*models.DealReceipt, error) {
	var rec models.DealReceipt
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, channel_title, owner_alias, advertiser_alias,
		       amount, final_status, completed_at, data_hash, created_at
		FROM deal_receipts WHERE deal_id = $1
	`, dealID).Scan(&rec.ID, &rec.DealID, &rec.ChannelTitle, &rec.OwnerAlias, &rec.AdvertiserAlias,
		&rec.Amount, &rec.FinalStatus, &rec.CompletedAt, &rec.DataHash, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("receipt: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}
