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

type RequirementRepo struct {
	pool *pgxpool.Pool
}

func NewRequirementRepo(pool *pgxpool.Pool) *RequirementRepo {
	return &RequirementRepo{pool: pool}
}

func (r *RequirementRepo) Create(ctx context.Context, tx Querier, req *models.DealRequirement) error {
	return tx.QueryRow(ctx, `
		INSERT INTO deal_requirements (deal_id, metric_type, target_value, current_value, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, req.DealID, req.MetricType, req.TargetValue, req.CurrentValue, req.Status).Scan(&req.ID)
}

func (r *RequirementRepo) GetByID(ctx context.Context, id int64) (*models.DealRequirement, error) {
	var req models.DealRequirement
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, metric_type, target_value, current_value, status, last_checked_at, met_at
		FROM deal_requirements WHERE id = $1
	`, id).Scan(&req.ID, &req.DealID, &req.MetricType, &req.TargetValue, &req.CurrentValue,
		&req.Status, &req.LastCheckedAt, &req.MetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("requirement: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

func (r *RequirementRepo) ListByDeal(ctx context.Context, dealID int64) ([]models.DealRequirement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, metric_type, target_value, current_value, status, last_checked_at, met_at
		FROM deal_requirements WHERE deal_id = $1 ORDER BY id
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.DealRequirement
	for rows.Next() {
		var req models.DealRequirement
		if err := rows.Scan(&req.ID, &req.DealID, &req.MetricType, &req.TargetValue, &req.CurrentValue,
			&req.Status, &req.LastCheckedAt, &req.MetAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpdateProgress writes the evaluator's per-requirement output. Latching is
// enforced in SQL as well: met/waived rows never move backwards.
func (r *RequirementRepo) UpdateProgress(ctx context.Context, id int64, currentValue int64, status string, metAt *time.Time, checkedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_requirements
		SET current_value = $1,
		    status = CASE WHEN status IN ('met', 'waived') THEN status ELSE $2 END,
		    met_at = COALESCE(met_at, $3),
		    last_checked_at = $4
		WHERE id = $5
	`, currentValue, status, metAt, checkedAt, id)
	return err
}

func (r *RequirementRepo) MarkWaived(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_requirements SET status = 'waived' WHERE id = $1 AND status <> 'met'
	`, id)
	return err
}

func (r *RequirementRepo) MarkConfirmed(ctx context.Context, id int64, targetValue int64, metAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_requirements SET current_value = $1, status = 'met', met_at = $2 WHERE id = $3
	`, targetValue, metAt, id)
	return err
}
