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

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// UpsertByExternalID creates the user on first authenticated contact and
// upgrades the role monotonically on later contacts.
func (r *UserRepo) UpsertByExternalID(ctx context.Context, externalID int64, username *string, role string) (*models.User, error) {
	existing, err := r.GetByExternalID(ctx, externalID)
	if err == nil {
		merged := models.MergeRole(existing.Role, role)
		_, err = r.pool.Exec(ctx, `
			UPDATE users SET username = COALESCE($1, username), role = $2, last_active_at = now()
			WHERE id = $3
		`, username, merged, existing.ID)
		if err != nil {
			return nil, err
		}
		existing.Role = merged
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	var u models.User
	u.ExternalID = externalID
	u.Username = username
	u.Role = role
	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (external_id, username, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, last_active_at
	`, externalID, username, role).Scan(&u.ID, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, external_id, username, role, payout_address, created_at, last_active_at
		FROM users WHERE id = $1
	`, id))
}

func (r *UserRepo) GetByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, external_id, username, role, payout_address, created_at, last_active_at
		FROM users WHERE external_id = $1
	`, externalID))
}

func (r *UserRepo) scanOne(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Role, &u.PayoutAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetPayoutAddress(ctx context.Context, id int64, address string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET payout_address = $1 WHERE id = $2`, address, id)
	return err
}

func (r *UserRepo) UpdateUsername(ctx context.Context, id int64, username *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET username = $1, last_active_at = now() WHERE id = $2`, username, id)
	return err
}
