package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
)

const channelColumns = `id, platform, platform_channel_id, owner_user_id, title,
       subscribers, avg_views, premium_fraction, language,
       verified, verified_at, verification_token, stats_refreshed_at,
       created_at, updated_at`

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var c models.Channel
	err := row.Scan(&c.ID, &c.Platform, &c.PlatformChannelID, &c.OwnerUserID, &c.Title,
		&c.Subscribers, &c.AvgViews, &c.PremiumFraction, &c.Language,
		&c.Verified, &c.VerifiedAt, &c.VerificationToken, &c.StatsRefreshedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("channel: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepo) Create(ctx context.Context, c *models.Channel) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO channels (platform, platform_channel_id, owner_user_id, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, c.Platform, c.PlatformChannelID, c.OwnerUserID, c.Title).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("channel already registered: %w", apperr.ErrConflict)
	}
	return err
}

func (r *ChannelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	return scanChannel(r.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
}

func (r *ChannelRepo) ListByOwner(ctx context.Context, ownerID int64) ([]models.Channel, error) {
	return r.list(ctx, `SELECT `+channelColumns+` FROM channels WHERE owner_user_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *ChannelRepo) ListAll(ctx context.Context, limit, offset int) ([]models.Channel, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.list(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY subscribers DESC NULLS LAST LIMIT $1 OFFSET $2`, limit, offset)
}

// ListStatsStale returns channels whose cached stats are older than maxAge,
// capped for one refresh cycle.
func (r *ChannelRepo) ListStatsStale(ctx context.Context, maxAge time.Duration, limit int) ([]models.Channel, error) {
	return r.list(ctx, fmt.Sprintf(`
		SELECT %s FROM channels
		WHERE stats_refreshed_at IS NULL OR stats_refreshed_at < now() - interval '%d seconds'
		ORDER BY stats_refreshed_at ASC NULLS FIRST LIMIT %d
	`, channelColumns, int(maxAge.Seconds()), limit))
}

func (r *ChannelRepo) list(ctx context.Context, query string, args ...any) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.Platform, &c.PlatformChannelID, &c.OwnerUserID, &c.Title,
			&c.Subscribers, &c.AvgViews, &c.PremiumFraction, &c.Language,
			&c.Verified, &c.VerifiedAt, &c.VerificationToken, &c.StatsRefreshedAt,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (r *ChannelRepo) UpdateTitle(ctx context.Context, id int64, title *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE channels SET title = $1, updated_at = now() WHERE id = $2`, title, id)
	return err
}

func (r *ChannelRepo) UpdateStats(ctx context.Context, id int64, subscribers, avgViews *int, language *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channels SET subscribers = COALESCE($1, subscribers),
		       avg_views = COALESCE($2, avg_views),
		       language = COALESCE($3, language),
		       stats_refreshed_at = now(), updated_at = now()
		WHERE id = $4
	`, subscribers, avgViews, language, id)
	return err
}

func (r *ChannelRepo) SetVerificationToken(ctx context.Context, id int64, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE channels SET verification_token = $1, updated_at = now() WHERE id = $2`, token, id)
	return err
}

func (r *ChannelRepo) MarkVerified(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channels SET verified = true, verified_at = now(), verification_token = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// ---- Ad formats ----

func (r *ChannelRepo) CreateFormat(ctx context.Context, f *models.AdFormat) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ad_formats (channel_id, type, label, price, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, f.ChannelID, f.Type, f.Label, f.Price, f.Active).Scan(&f.ID, &f.CreatedAt)
}

func (r *ChannelRepo) GetFormat(ctx context.Context, id int64) (*models.AdFormat, error) {
	var f models.AdFormat
	err := r.pool.QueryRow(ctx, `
		SELECT id, channel_id, type, label, price, active, created_at
		FROM ad_formats WHERE id = $1
	`, id).Scan(&f.ID, &f.ChannelID, &f.Type, &f.Label, &f.Price, &f.Active, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ad format: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (r *ChannelRepo) ListFormats(ctx context.Context, channelID int64) ([]models.AdFormat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel_id, type, label, price, active, created_at
		FROM ad_formats WHERE channel_id = $1 ORDER BY id
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var formats []models.AdFormat
	for rows.Next() {
		var f models.AdFormat
		if err := rows.Scan(&f.ID, &f.ChannelID, &f.Type, &f.Label, &f.Price, &f.Active, &f.CreatedAt); err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (r *ChannelRepo) UpdateFormat(ctx context.Context, f *models.AdFormat) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE ad_formats SET label = $1, price = $2, active = $3 WHERE id = $4
	`, f.Label, f.Price, f.Active, f.ID)
	return err
}

func (r *ChannelRepo) DeleteFormat(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ad_formats WHERE id = $1`, id)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
