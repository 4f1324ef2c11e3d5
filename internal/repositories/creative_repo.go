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

type CreativeRepo struct {
	pool *pgxpool.Pool
}

func NewCreativeRepo(pool *pgxpool.Pool) *CreativeRepo {
	return &CreativeRepo{pool: pool}
}

func (r *CreativeRepo) Create(ctx context.Context, tx Querier, c *models.Creative) error {
	return tx.QueryRow(ctx, `
		INSERT INTO creatives (deal_id, version, text_encrypted, media_url_encrypted, media_type,
		                       submitted_by_user_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, c.DealID, c.Version, c.TextEncrypted, c.MediaURLEncrypted, c.MediaType,
		c.SubmittedByUserID, c.Status).Scan(&c.ID, &c.CreatedAt)
}

func (r *CreativeRepo) MaxVersion(ctx context.Context, tx Querier, dealID int64) (int, error) {
	var v *int
	err := tx.QueryRow(ctx, `SELECT MAX(version) FROM creatives WHERE deal_id = $1`, dealID).Scan(&v)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (r *CreativeRepo) GetLatest(ctx context.Context, dealID int64) (*models.Creative, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, deal_id, version, text_encrypted, media_url_encrypted, media_type,
		       submitted_by_user_id, reviewer_notes, status, created_at
		FROM creatives WHERE deal_id = $1 ORDER BY version DESC LIMIT 1
	`, dealID))
}

// GetApproved returns the newest approved version, the canonical creative.
func (r *CreativeRepo) GetApproved(ctx context.Context, dealID int64) (*models.Creative, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, deal_id, version, text_encrypted, media_url_encrypted, media_type,
		       submitted_by_user_id, reviewer_notes, status, created_at
		FROM creatives WHERE deal_id = $1 AND status = 'approved' ORDER BY version DESC LIMIT 1
	`, dealID))
}

func (r *CreativeRepo) scanOne(row pgx.Row) (*models.Creative, error) {
	var c models.Creative
	err := row.Scan(&c.ID, &c.DealID, &c.Version, &c.TextEncrypted, &c.MediaURLEncrypted, &c.MediaType,
		&c.SubmittedByUserID, &c.ReviewerNotes, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("creative: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CreativeRepo) ListByDeal(ctx context.Context, dealID int64) ([]models.Creative, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, version, text_encrypted, media_url_encrypted, media_type,
		       submitted_by_user_id, reviewer_notes, status, created_at
		FROM creatives WHERE deal_id = $1 ORDER BY version
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creatives []models.Creative
	for rows.Next() {
		var c models.Creative
		if err := rows.Scan(&c.ID, &c.DealID, &c.Version, &c.TextEncrypted, &c.MediaURLEncrypted, &c.MediaType,
			&c.SubmittedByUserID, &c.ReviewerNotes, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		creatives = append(creatives, c)
	}
	return creatives, rows.Err()
}

func (r *CreativeRepo) UpdateStatus(ctx context.Context, tx Querier, id int64, status string, reviewerNotes *string) error {
	_, err := tx.Exec(ctx, `
		UPDATE creatives SET status = $1, reviewer_notes = COALESCE($2, reviewer_notes) WHERE id = $3
	`, status, reviewerNotes, id)
	return err
}

// PurgeSensitive nulls the encrypted payload of every creative for a deal.
func (r *CreativeRepo) PurgeSensitive(ctx context.Context, tx Querier, dealID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE creatives SET text_encrypted = NULL, media_url_encrypted = NULL WHERE deal_id = $1
	`, dealID)
	return err
}
