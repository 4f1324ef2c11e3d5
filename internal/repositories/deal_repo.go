package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
)

const dealColumns = `id, channel_id, advertiser_user_id, ad_format_id, status, amount,
       owner_alias, advertiser_alias, escrow_address, escrow_key_encrypted,
       timeout_at, verification_window_hours, tracking_started_at,
       posted_platform_id, post_proof_url, content_hash, completed_at,
       created_at, updated_at`

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.AdFormatID, &d.Status, &d.Amount,
		&d.OwnerAlias, &d.AdvertiserAlias, &d.EscrowAddress, &d.EscrowKeyEncrypted,
		&d.TimeoutAt, &d.VerificationWindowHours, &d.TrackingStartedAt,
		&d.PostedPlatformID, &d.PostProofURL, &d.ContentHash, &d.CompletedAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deal: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

func (r *DealRepo) Create(ctx context.Context, tx Querier, d *models.Deal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO deals (channel_id, advertiser_user_id, ad_format_id, status, amount,
		                   owner_alias, advertiser_alias, timeout_at, verification_window_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, d.ChannelID, d.AdvertiserUserID, d.AdFormatID, d.Status, d.Amount,
		d.OwnerAlias, d.AdvertiserAlias, d.TimeoutAt, d.VerificationWindowHours,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id int64) (*models.Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

// LockByID acquires an exclusive row lock on the deal for the remainder of the
// transaction. Every status-dependent mutation goes through this.
func (r *DealRepo) LockByID(ctx context.Context, tx Querier, id int64) (*models.Deal, error) {
	return scanDeal(tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id))
}

func (r *DealRepo) GetByIDWithChannel(ctx context.Context, id int64) (*models.DealWithChannel, error) {
	var d models.DealWithChannel
	err := r.pool.QueryRow(ctx, `
		SELECT d.id, d.channel_id, d.advertiser_user_id, d.ad_format_id, d.status, d.amount,
		       d.owner_alias, d.advertiser_alias, d.escrow_address, d.escrow_key_encrypted,
		       d.timeout_at, d.verification_window_hours, d.tracking_started_at,
		       d.posted_platform_id, d.post_proof_url, d.content_hash, d.completed_at,
		       d.created_at, d.updated_at,
		       c.title, c.owner_user_id, c.platform
		FROM deals d
		JOIN channels c ON c.id = d.channel_id
		WHERE d.id = $1
	`, id).Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.AdFormatID, &d.Status, &d.Amount,
		&d.OwnerAlias, &d.AdvertiserAlias, &d.EscrowAddress, &d.EscrowKeyEncrypted,
		&d.TimeoutAt, &d.VerificationWindowHours, &d.TrackingStartedAt,
		&d.PostedPlatformID, &d.PostProofURL, &d.ContentHash, &d.CompletedAt,
		&d.CreatedAt, &d.UpdatedAt,
		&d.ChannelTitle, &d.ChannelOwnerID, &d.Platform)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deal: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// UpdateStatus writes the status plus the bookkeeping columns the state
// machine computed. Runs inside the caller's transaction.
func (r *DealRepo) UpdateStatus(ctx context.Context, tx Querier, id int64, status string, timeoutAt *time.Time, completedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deals SET status = $1, timeout_at = $2, completed_at = COALESCE($3, completed_at), updated_at = now()
		WHERE id = $4
	`, status, timeoutAt, completedAt, id)
	return err
}

func (r *DealRepo) SetEscrow(ctx context.Context, id int64, address, keyEncrypted string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET escrow_address = $1, escrow_key_encrypted = $2, updated_at = now()
		WHERE id = $3 AND escrow_address IS NULL
	`, address, keyEncrypted, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("escrow already set for deal %d: %w", id, apperr.ErrConflict)
	}
	return nil
}

// SetPosted records the proof fields and the tracking clock inside a transaction
// that already holds the deal row lock.
func (r *DealRepo) SetPosted(ctx context.Context, tx Querier, id int64, platformID, proofURL, contentHash string, trackingStartedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE deals SET posted_platform_id = $1, post_proof_url = $2, content_hash = $3,
		       tracking_started_at = $4, updated_at = now()
		WHERE id = $5
	`, platformID, proofURL, contentHash, trackingStartedAt, id)
	return err
}

type DealFilter struct {
	ChannelID        *int64
	AdvertiserUserID *int64
	OwnerUserID      *int64 // through channel ownership
	Status           *string
	Limit            int
	Offset           int
}

func (r *DealRepo) List(ctx context.Context, f DealFilter) ([]models.DealWithChannel, error) {
	query := `
		SELECT d.id, d.channel_id, d.advertiser_user_id, d.ad_format_id, d.status, d.amount,
		       d.owner_alias, d.advertiser_alias, d.escrow_address, d.escrow_key_encrypted,
		       d.timeout_at, d.verification_window_hours, d.tracking_started_at,
		       d.posted_platform_id, d.post_proof_url, d.content_hash, d.completed_at,
		       d.created_at, d.updated_at,
		       c.title, c.owner_user_id, c.platform
		FROM deals d
		JOIN channels c ON c.id = d.channel_id
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ChannelID != nil {
		where = append(where, fmt.Sprintf("d.channel_id = $%d", argIdx))
		args = append(args, *f.ChannelID)
		argIdx++
	}
	if f.AdvertiserUserID != nil {
		where = append(where, fmt.Sprintf("d.advertiser_user_id = $%d", argIdx))
		args = append(args, *f.AdvertiserUserID)
		argIdx++
	}
	if f.OwnerUserID != nil {
		where = append(where, fmt.Sprintf("c.owner_user_id = $%d", argIdx))
		args = append(args, *f.OwnerUserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("d.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.DealWithChannel
	for rows.Next() {
		var d models.DealWithChannel
		if err := rows.Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.AdFormatID, &d.Status, &d.Amount,
			&d.OwnerAlias, &d.AdvertiserAlias, &d.EscrowAddress, &d.EscrowKeyEncrypted,
			&d.TimeoutAt, &d.VerificationWindowHours, &d.TrackingStartedAt,
			&d.PostedPlatformID, &d.PostProofURL, &d.ContentHash, &d.CompletedAt,
			&d.CreatedAt, &d.UpdatedAt,
			&d.ChannelTitle, &d.ChannelOwnerID, &d.Platform); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// ListAwaitingPayment returns deals the payment detector should poll.
func (r *DealRepo) ListAwaitingPayment(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.listByCondition(ctx, `status = $1 AND escrow_address IS NOT NULL`, limit, models.DealStatusPendingPayment)
}

// ListTimedOut returns non-terminal deals whose soft timer has elapsed.
func (r *DealRepo) ListTimedOut(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.listByCondition(ctx, `timeout_at IS NOT NULL AND timeout_at <= now()
		AND status NOT IN ('completed', 'cancelled', 'refunded', 'timed_out')`, limit)
}

// ListTracking returns deals the metric tracker should evaluate.
func (r *DealRepo) ListTracking(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.listByCondition(ctx, `status = $1 AND posted_platform_id IS NOT NULL`, limit, models.DealStatusTracking)
}

// ListPurgeable returns settled deals past retention with no receipt yet.
func (r *DealRepo) ListPurgeable(ctx context.Context, retentionDays, limit int) ([]models.Deal, error) {
	return r.listByCondition(ctx, fmt.Sprintf(`completed_at IS NOT NULL
		AND completed_at < now() - interval '%d days'
		AND status IN ('completed', 'cancelled', 'refunded')
		AND NOT EXISTS (SELECT 1 FROM deal_receipts dr WHERE dr.deal_id = deals.id)`, retentionDays), limit)
}

func (r *DealRepo) listByCondition(ctx context.Context, cond string, limit int, args ...any) ([]models.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM deals WHERE %s ORDER BY updated_at ASC LIMIT %d`, dealColumns, cond, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.AdFormatID, &d.Status, &d.Amount,
			&d.OwnerAlias, &d.AdvertiserAlias, &d.EscrowAddress, &d.EscrowKeyEncrypted,
			&d.TimeoutAt, &d.VerificationWindowHours, &d.TrackingStartedAt,
			&d.PostedPlatformID, &d.PostProofURL, &d.ContentHash, &d.CompletedAt,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// PurgeSensitive nulls out the deal's escrow material inside the purge
// transaction. Creatives, transactions, and events are handled by their repos.
func (r *DealRepo) PurgeSensitive(ctx context.Context, tx Querier, id int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE deals SET escrow_address = NULL, escrow_key_encrypted = NULL,
		       post_proof_url = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// PlatformStats is the public /stats aggregate.
type PlatformStats struct {
	TotalDeals     int64  `json:"total_deals"`
	CompletedDeals int64  `json:"completed_deals"`
	ActiveDeals    int64  `json:"active_deals"`
	TotalVolume    string `json:"total_volume"`
	TotalChannels  int64  `json:"total_channels"`
}

func (r *DealRepo) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	var s PlatformStats
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'completed'),
		       count(*) FILTER (WHERE status NOT IN ('completed', 'cancelled', 'refunded')),
		       COALESCE(sum(amount::numeric) FILTER (WHERE status = 'completed'), 0)::text,
		       (SELECT count(*) FROM channels)
		FROM deals
	`).Scan(&s.TotalDeals, &s.CompletedDeals, &s.ActiveDeals, &s.TotalVolume, &s.TotalChannels)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
