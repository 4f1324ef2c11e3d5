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

const disputeColumns = `id, deal_id, opened_by_user_id, reason, status, mutual_deadline,
       owner_proposal, owner_split_percent, advertiser_proposal, advertiser_split_percent,
       resolved_outcome, resolved_split_percent, resolved_by_user_id, resolved_reason,
       resolved_at, escalated_at, created_at`

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.DealID, &d.OpenedByUserID, &d.Reason, &d.Status, &d.MutualDeadline,
		&d.OwnerProposal, &d.OwnerSplitPercent, &d.AdvertiserProposal, &d.AdvertiserSplitPct,
		&d.ResolvedOutcome, &d.ResolvedSplitPercent, &d.ResolvedByUserID, &d.ResolvedReason,
		&d.ResolvedAt, &d.EscalatedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dispute: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) Create(ctx context.Context, tx Querier, d *models.Dispute) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO disputes (deal_id, opened_by_user_id, reason, status, mutual_deadline)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.DealID, d.OpenedByUserID, d.Reason, d.Status, d.MutualDeadline).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("dispute already open for deal %d: %w", d.DealID, apperr.ErrConflict)
	}
	return err
}

func (r *DisputeRepo) GetByID(ctx context.Context, id int64) (*models.Dispute, error) {
	return scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
}

func (r *DisputeRepo) GetByDeal(ctx context.Context, dealID int64) (*models.Dispute, error) {
	return scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE deal_id = $1`, dealID))
}

func (r *DisputeRepo) SetOwnerProposal(ctx context.Context, id int64, outcome string, splitPct *int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET owner_proposal = $1, owner_split_percent = $2 WHERE id = $3
	`, outcome, splitPct, id)
	return err
}

func (r *DisputeRepo) SetAdvertiserProposal(ctx context.Context, id int64, outcome string, splitPct *int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET advertiser_proposal = $1, advertiser_split_percent = $2 WHERE id = $3
	`, outcome, splitPct, id)
	return err
}

func (r *DisputeRepo) MarkResolved(ctx context.Context, id int64, outcome string, splitPct *int, resolvedBy *int64, reason *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = 'resolved', resolved_outcome = $1, resolved_split_percent = $2,
		       resolved_by_user_id = $3, resolved_reason = $4, resolved_at = now()
		WHERE id = $5
	`, outcome, splitPct, resolvedBy, reason, id)
	return err
}

// MarkMutual moves a dispute from open into mutual_resolution once the first
// proposal lands. No-op on any other status.
func (r *DisputeRepo) MarkMutual(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = 'mutual_resolution' WHERE id = $1 AND status = 'open'
	`, id)
	return err
}

// MarkEscalated moves an unresolved dispute past its mutual window into admin
// review. The WHERE guard keeps concurrent escalators idempotent.
func (r *DisputeRepo) MarkEscalated(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = 'admin_review', escalated_at = $1
		WHERE id = $2 AND status IN ('open', 'mutual_resolution')
	`, at, id)
	return err
}

// ListExpiredMutual returns disputes whose mutual window has elapsed.
func (r *DisputeRepo) ListExpiredMutual(ctx context.Context, limit int) ([]models.Dispute, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE mutual_deadline <= now() AND status IN ('open', 'mutual_resolution')
		ORDER BY mutual_deadline ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *DisputeRepo) ListByStatus(ctx context.Context, status string, limit int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE status = $1 ORDER BY created_at ASC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *DisputeRepo) collect(rows pgx.Rows) ([]models.Dispute, error) {
	defer rows.Close()
	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.DealID, &d.OpenedByUserID, &d.Reason, &d.Status, &d.MutualDeadline,
			&d.OwnerProposal, &d.OwnerSplitPercent, &d.AdvertiserProposal, &d.AdvertiserSplitPct,
			&d.ResolvedOutcome, &d.ResolvedSplitPercent, &d.ResolvedByUserID, &d.ResolvedReason,
			&d.ResolvedAt, &d.EscalatedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// ---- Evidence ----

func (r *DisputeRepo) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dispute_evidence (dispute_id, user_id, description, url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.DisputeID, e.UserID, e.Description, e.URL).Scan(&e.ID, &e.CreatedAt)
}

func (r *DisputeRepo) ListEvidence(ctx context.Context, disputeID int64) ([]models.DisputeEvidence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, user_id, description, url, created_at
		FROM dispute_evidence WHERE dispute_id = $1 ORDER BY id
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evidence []models.DisputeEvidence
	for rows.Next() {
		var e models.DisputeEvidence
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.UserID, &e.Description, &e.URL, &e.CreatedAt); err != nil {
			return nil, err
		}
		evidence = append(evidence, e)
	}
	return evidence, rows.Err()
}
