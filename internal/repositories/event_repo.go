package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorbridge/backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append writes an event row. Status changes call this inside the same
// transaction as the deal update; commit is all-or-nothing.
func (r *EventRepo) Append(ctx context.Context, q Querier, e *models.DealEvent) error {
	var meta []byte
	if e.Metadata != nil {
		meta, _ = json.Marshal(e.Metadata)
	}
	return q.QueryRow(ctx, `
		INSERT INTO deal_events (deal_id, event_type, old_status, new_status, actor_user_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.DealID, e.EventType, e.OldStatus, e.NewStatus, e.ActorUserID, meta).Scan(&e.ID, &e.CreatedAt)
}

func (r *EventRepo) ListByDeal(ctx context.Context, dealID int64, limit int) ([]models.DealEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, event_type, old_status, new_status, actor_user_id, metadata, created_at
		FROM deal_events WHERE deal_id = $1 ORDER BY id LIMIT $2
	`, dealID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DealEvent
	for rows.Next() {
		var e models.DealEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.DealID, &e.EventType, &e.OldStatus, &e.NewStatus,
			&e.ActorUserID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteByDeal removes the event log at purge time.
func (r *EventRepo) DeleteByDeal(ctx context.Context, tx Querier, dealID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM deal_events WHERE deal_id = $1`, dealID)
	return err
}
