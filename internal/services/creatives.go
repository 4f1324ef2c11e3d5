package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/notify"
	"github.com/sponsorbridge/backend/internal/platform"
	"github.com/sponsorbridge/backend/internal/privacy"
	"github.com/sponsorbridge/backend/internal/repositories"
)

const maxCreativeTextLen = 4096

type CreativeService struct {
	store     *repositories.Store
	deals     *repositories.DealRepo
	channels  *repositories.ChannelRepo
	creatives *repositories.CreativeRepo
	events    *repositories.EventRepo
	registry  *platform.Registry
	cipher    *privacy.FieldCipher
	publisher notify.Publisher
	log       *zap.Logger
}

func NewCreativeService(
	store *repositories.Store,
	deals *repositories.DealRepo,
	channels *repositories.ChannelRepo,
	creatives *repositories.CreativeRepo,
	events *repositories.EventRepo,
	registry *platform.Registry,
	cipher *privacy.FieldCipher,
	publisher notify.Publisher,
	log *zap.Logger,
) *CreativeService {
	return &CreativeService{
		store: store, deals: deals, channels: channels, creatives: creatives, events: events,
		registry: registry, cipher: cipher, publisher: publisher, log: log,
	}
}

// CreativeView is a creative with its payload decrypted for a party.
type CreativeView struct {
	ID            int64     `json:"id"`
	DealID        int64     `json:"deal_id"`
	Version       int       `json:"version"`
	Text          string    `json:"text"`
	MediaURL      *string   `json:"media_url,omitempty"`
	MediaType     *string   `json:"media_type,omitempty"`
	ReviewerNotes *string   `json:"reviewer_notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Submit stores a new creative version from the channel owner and moves the
// deal to creative_submitted. The payload is encrypted before it touches the
// database.
func (s *CreativeService) Submit(ctx context.Context, dealID, userID int64, text, mediaURL, mediaType string) (*models.Creative, error) {
	text = strings.TrimSpace(text)
	if text == "" && mediaURL == "" {
		return nil, fmt.Errorf("%w: creative needs text or media", apperr.ErrValidation)
	}
	if len(text) > maxCreativeTextLen {
		return nil, fmt.Errorf("%w: creative text too long", apperr.ErrValidation)
	}

	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.ChannelOwnerID != userID {
		return nil, fmt.Errorf("only the channel owner submits creatives: %w", apperr.ErrForbidden)
	}

	textEnc, err := s.cipher.Encrypt(text)
	if err != nil {
		return nil, err
	}
	var mediaEnc *string
	if mediaURL != "" {
		enc, err := s.cipher.Encrypt(mediaURL)
		if err != nil {
			return nil, err
		}
		mediaEnc = &enc
	}
	var mediaTypePtr *string
	if mediaType != "" {
		mediaTypePtr = &mediaType
	}

	creative := &models.Creative{
		DealID:            dealID,
		TextEncrypted:     &textEnc,
		MediaURLEncrypted: mediaEnc,
		MediaType:         mediaTypePtr,
		SubmittedByUserID: userID,
		Status:            models.CreativeSubmittedStatus,
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if locked.Status != models.DealStatusCreativePending && locked.Status != models.DealStatusCreativeRevision {
			return fmt.Errorf("deal %d: cannot submit creative from %s: %w",
				dealID, locked.Status, apperr.ErrInvalidTransition)
		}

		maxVersion, err := s.creatives.MaxVersion(ctx, tx, dealID)
		if err != nil {
			return err
		}
		creative.Version = maxVersion + 1
		if err := s.creatives.Create(ctx, tx, creative); err != nil {
			return err
		}

		return transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusCreativeSubmitted, EventCreativeAction, &userID,
			map[string]any{"version": creative.Version})
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, notify.DealStream, notify.Event{
			Type:    notify.EventCreativeSubmitted,
			Payload: map[string]any{"deal_id": dealID, "version": creative.Version},
		})
	}
	return creative, nil
}

// Approve accepts the latest submitted creative.
func (s *CreativeService) Approve(ctx context.Context, dealID, userID int64) error {
	return s.review(ctx, dealID, userID, models.CreativeApprovedStatus, models.DealStatusCreativeApproved, nil)
}

// RequestRevision sends the latest creative back to the owner with notes.
func (s *CreativeService) RequestRevision(ctx context.Context, dealID, userID int64, notes string) error {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return fmt.Errorf("%w: revision notes are required", apperr.ErrValidation)
	}
	return s.review(ctx, dealID, userID, models.CreativeRevisionRequested, models.DealStatusCreativeRevision, &notes)
}

func (s *CreativeService) review(ctx context.Context, dealID, userID int64, creativeStatus, dealStatus string, notes *string) error {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}
	if d.AdvertiserUserID != userID {
		return fmt.Errorf("only the advertiser reviews creatives: %w", apperr.ErrForbidden)
	}

	return s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if locked.Status != models.DealStatusCreativeSubmitted {
			return fmt.Errorf("deal %d: no creative awaiting review: %w", dealID, apperr.ErrInvalidTransition)
		}

		latest, err := s.creatives.GetLatest(ctx, dealID)
		if err != nil {
			return err
		}
		if latest.Status != models.CreativeSubmittedStatus {
			return fmt.Errorf("creative %d already reviewed: %w", latest.ID, apperr.ErrConflict)
		}
		if err := s.creatives.UpdateStatus(ctx, tx, latest.ID, creativeStatus, notes); err != nil {
			return err
		}

		return transitionLocked(ctx, tx, s.deals, s.events, locked,
			dealStatus, EventCreativeAction, &userID,
			map[string]any{"version": latest.Version, "review": creativeStatus})
	})
}

// SubmitPostProof records the published post for an approved creative. The
// URL must parse for the channel's platform, point at the deal's channel, and
// the post must be live. Its content hash anchors later tamper checks.
func (s *CreativeService) SubmitPostProof(ctx context.Context, dealID, userID int64, proofURL string) error {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return err
	}
	if d.ChannelOwnerID != userID {
		return fmt.Errorf("only the channel owner posts: %w", apperr.ErrForbidden)
	}

	adapter, err := s.registry.Get(d.Platform)
	if err != nil {
		return err
	}
	ref, err := adapter.ParsePostURL(proofURL)
	if err != nil {
		return err
	}

	channel, err := s.channels.GetByID(ctx, d.ChannelID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(ref.ChannelID, channel.PlatformChannelID) {
		return fmt.Errorf("%w: post belongs to a different channel", apperr.ErrValidation)
	}

	exists, err := adapter.VerifyPostExists(ctx, *ref)
	if err != nil {
		return fmt.Errorf("verify post: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: post not found at %s", apperr.ErrValidation, proofURL)
	}

	var contentHash string
	if fetcher, ok := adapter.(platform.ContentFetcher); ok {
		content, ok, err := fetcher.FetchPostContent(ctx, *ref)
		if err == nil && ok {
			contentHash = privacy.HashContent(content)
		}
	}

	return s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.deals.LockByID(ctx, tx, dealID)
		if err != nil {
			return err
		}
		if locked.Status != models.DealStatusCreativeApproved {
			return fmt.Errorf("deal %d: cannot post from %s: %w", dealID, locked.Status, apperr.ErrInvalidTransition)
		}

		now := time.Now()
		if err := s.deals.SetPosted(ctx, tx, dealID, ref.PostID, proofURL, contentHash, now); err != nil {
			return err
		}
		if err := transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusPosted, EventPostProof, &userID,
			map[string]any{"post_id": ref.PostID}); err != nil {
			return err
		}
		// Tracking starts the moment the proof is accepted.
		return transitionLocked(ctx, tx, s.deals, s.events, locked,
			models.DealStatusTracking, EventTrackingStarted, nil, nil)
	})
}

// List returns a deal's creative history with payloads decrypted.
func (s *CreativeService) List(ctx context.Context, dealID, userID int64, isAdmin bool) ([]CreativeView, error) {
	d, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(userID) && !isAdmin {
		return nil, fmt.Errorf("deal %d: %w", dealID, apperr.ErrForbidden)
	}

	creatives, err := s.creatives.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	views := make([]CreativeView, 0, len(creatives))
	for i := range creatives {
		c := &creatives[i]
		v := CreativeView{
			ID: c.ID, DealID: c.DealID, Version: c.Version,
			MediaType: c.MediaType, ReviewerNotes: c.ReviewerNotes,
			Status: c.Status, CreatedAt: c.CreatedAt,
		}
		if c.TextEncrypted != nil {
			if text, err := s.cipher.Decrypt(*c.TextEncrypted); err == nil {
				v.Text = text
			}
		}
		if c.MediaURLEncrypted != nil {
			if url, err := s.cipher.Decrypt(*c.MediaURLEncrypted); err == nil {
				v.MediaURL = &url
			}
		}
		views = append(views, v)
	}
	return views, nil
}
