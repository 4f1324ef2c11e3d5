package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/money"
	"github.com/sponsorbridge/backend/internal/platform"
	"github.com/sponsorbridge/backend/internal/repositories"
)

type ChannelService struct {
	channels *repositories.ChannelRepo
	registry *platform.Registry
	log      *zap.Logger
}

func NewChannelService(channels *repositories.ChannelRepo, registry *platform.Registry, log *zap.Logger) *ChannelService {
	return &ChannelService{channels: channels, registry: registry, log: log}
}

// Register claims a channel for a user. The channel starts unverified; proof
// of control happens through the verification token flow.
func (s *ChannelService) Register(ctx context.Context, ownerUserID int64, platformTag, platformChannelID string) (*models.Channel, error) {
	platformChannelID = strings.TrimPrefix(strings.TrimSpace(platformChannelID), "@")
	if platformChannelID == "" {
		return nil, fmt.Errorf("%w: channel id is required", apperr.ErrValidation)
	}

	adapter, err := s.registry.Get(platformTag)
	if err != nil {
		return nil, err
	}

	info, err := adapter.FetchChannelInfo(ctx, platformChannelID)
	if err != nil {
		return nil, fmt.Errorf("fetch channel info: %w", err)
	}

	ch := &models.Channel{
		Platform:          platformTag,
		PlatformChannelID: platformChannelID,
		OwnerUserID:       ownerUserID,
		Subscribers:       info.Subscribers,
		AvgViews:          info.AvgViews,
		Language:          info.Language,
	}
	if info.Title != "" {
		ch.Title = &info.Title
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// RequestVerification issues the token the owner must place in the channel
// description. Re-requesting rotates the token.
func (s *ChannelService) RequestVerification(ctx context.Context, channelID, ownerUserID int64) (string, error) {
	ch, err := s.ownedChannel(ctx, channelID, ownerUserID)
	if err != nil {
		return "", err
	}
	if ch.Verified {
		return "", fmt.Errorf("channel %d already verified: %w", channelID, apperr.ErrConflict)
	}

	token := "sb-" + strings.Split(uuid.New().String(), "-")[0]
	if err := s.channels.SetVerificationToken(ctx, channelID, token); err != nil {
		return "", err
	}
	return token, nil
}

// ConfirmVerification re-reads the channel and accepts ownership when the
// token shows up in its description. Platforms with an admin-lookup API
// short-circuit the token dance.
func (s *ChannelService) ConfirmVerification(ctx context.Context, channelID, ownerUserID, ownerExternalID int64) (*models.Channel, error) {
	ch, err := s.ownedChannel(ctx, channelID, ownerUserID)
	if err != nil {
		return nil, err
	}
	if ch.Verified {
		return ch, nil
	}

	adapter, err := s.registry.Get(ch.Platform)
	if err != nil {
		return nil, err
	}

	verified := false
	if av, ok := adapter.(platform.AdminVerifier); ok {
		verified, err = av.VerifyUserAdmin(ctx, ch.PlatformChannelID, ownerExternalID)
		if err != nil {
			s.log.Warn("admin verification failed, falling back to token",
				zap.Int64("channel_id", channelID), zap.Error(err))
		}
	}
	if !verified {
		if ch.VerificationToken == nil {
			return nil, fmt.Errorf("%w: request a verification token first", apperr.ErrValidation)
		}
		info, err := adapter.FetchChannelInfo(ctx, ch.PlatformChannelID)
		if err != nil {
			return nil, fmt.Errorf("fetch channel info: %w", err)
		}
		verified = strings.Contains(info.Description, *ch.VerificationToken)
	}

	if !verified {
		return nil, fmt.Errorf("%w: verification token not found in channel description", apperr.ErrValidation)
	}
	if err := s.channels.MarkVerified(ctx, channelID); err != nil {
		return nil, err
	}
	return s.channels.GetByID(ctx, channelID)
}

// RefreshStats re-scrapes public channel numbers. Used by the stats worker
// and by an explicit owner request.
func (s *ChannelService) RefreshStats(ctx context.Context, ch *models.Channel) error {
	adapter, err := s.registry.Get(ch.Platform)
	if err != nil {
		return err
	}
	info, err := adapter.FetchChannelInfo(ctx, ch.PlatformChannelID)
	if err != nil {
		return err
	}

	if info.Title != "" && (ch.Title == nil || *ch.Title != info.Title) {
		if err := s.channels.UpdateTitle(ctx, ch.ID, &info.Title); err != nil {
			return err
		}
	}
	return s.channels.UpdateStats(ctx, ch.ID, info.Subscribers, info.AvgViews, info.Language)
}

// RefreshStale refreshes channels whose stats are older than maxAge.
func (s *ChannelService) RefreshStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	stale, err := s.channels.ListStatsStale(ctx, maxAge, limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range stale {
		if err := s.RefreshStats(ctx, &stale[i]); err != nil {
			s.log.Warn("stats refresh failed",
				zap.Int64("channel_id", stale[i].ID),
				zap.String("channel", stale[i].PlatformChannelID),
				zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (s *ChannelService) Get(ctx context.Context, channelID int64) (*models.Channel, error) {
	return s.channels.GetByID(ctx, channelID)
}

func (s *ChannelService) List(ctx context.Context, limit, offset int) ([]models.Channel, error) {
	return s.channels.ListAll(ctx, limit, offset)
}

func (s *ChannelService) ListByOwner(ctx context.Context, ownerUserID int64) ([]models.Channel, error) {
	return s.channels.ListByOwner(ctx, ownerUserID)
}

func (s *ChannelService) ownedChannel(ctx context.Context, channelID, ownerUserID int64) (*models.Channel, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.OwnerUserID != ownerUserID {
		return nil, fmt.Errorf("channel %d: %w", channelID, apperr.ErrForbidden)
	}
	return ch, nil
}

// ---- Ad formats ----

type AdFormatInput struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Price  string `json:"price"`
	Active bool   `json:"active"`
}

func (s *ChannelService) CreateFormat(ctx context.Context, channelID, ownerUserID int64, in AdFormatInput) (*models.AdFormat, error) {
	if _, err := s.ownedChannel(ctx, channelID, ownerUserID); err != nil {
		return nil, err
	}
	if !models.IsValidAdFormatType(in.Type) {
		return nil, fmt.Errorf("%w: unknown ad format type %q", apperr.ErrValidation, in.Type)
	}
	price, err := validPrice(in.Price)
	if err != nil {
		return nil, err
	}

	f := &models.AdFormat{
		ChannelID: channelID,
		Type:      in.Type,
		Label:     strings.TrimSpace(in.Label),
		Price:     price,
		Active:    true,
	}
	if f.Label == "" {
		f.Label = in.Type
	}
	if err := s.channels.CreateFormat(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *ChannelService) UpdateFormat(ctx context.Context, channelID, formatID, ownerUserID int64, in AdFormatInput) (*models.AdFormat, error) {
	if _, err := s.ownedChannel(ctx, channelID, ownerUserID); err != nil {
		return nil, err
	}
	f, err := s.channels.GetFormat(ctx, formatID)
	if err != nil {
		return nil, err
	}
	if f.ChannelID != channelID {
		return nil, fmt.Errorf("ad format: %w", apperr.ErrNotFound)
	}

	if in.Type != "" {
		if !models.IsValidAdFormatType(in.Type) {
			return nil, fmt.Errorf("%w: unknown ad format type %q", apperr.ErrValidation, in.Type)
		}
		f.Type = in.Type
	}
	if in.Label != "" {
		f.Label = in.Label
	}
	if in.Price != "" {
		price, err := validPrice(in.Price)
		if err != nil {
			return nil, err
		}
		f.Price = price
	}
	f.Active = in.Active

	if err := s.channels.UpdateFormat(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *ChannelService) DeleteFormat(ctx context.Context, channelID, formatID, ownerUserID int64) error {
	if _, err := s.ownedChannel(ctx, channelID, ownerUserID); err != nil {
		return err
	}
	f, err := s.channels.GetFormat(ctx, formatID)
	if err != nil {
		return err
	}
	if f.ChannelID != channelID {
		return fmt.Errorf("ad format: %w", apperr.ErrNotFound)
	}
	return s.channels.DeleteFormat(ctx, formatID)
}

func (s *ChannelService) ListFormats(ctx context.Context, channelID int64) ([]models.AdFormat, error) {
	return s.channels.ListFormats(ctx, channelID)
}

func validPrice(s string) (string, error) {
	amount, err := money.FromDecimalString(s)
	if err != nil {
		return "", err
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: price must be positive", apperr.ErrValidation)
	}
	return amount.String(), nil
}
