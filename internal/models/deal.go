package models

import "time"

// Deal statuses
const (
	DealStatusPendingPayment    = "pending_payment"
	DealStatusFunded            = "funded"
	DealStatusCreativePending   = "creative_pending"
	DealStatusCreativeSubmitted = "creative_submitted"
	DealStatusCreativeRevision  = "creative_revision"
	DealStatusCreativeApproved  = "creative_approved"
	DealStatusPosted            = "posted"
	DealStatusTracking          = "tracking"
	DealStatusVerified          = "verified"
	DealStatusCompleted         = "completed"
	DealStatusFailed            = "failed"
	DealStatusCancelled         = "cancelled"
	DealStatusRefunded          = "refunded"
	DealStatusDisputed          = "disputed"
	DealStatusTimedOut          = "timed_out"
)

// Valid state transitions: from -> []to
var ValidDealTransitions = map[string][]string{
	DealStatusPendingPayment:    {DealStatusFunded, DealStatusCancelled, DealStatusTimedOut},
	DealStatusFunded:            {DealStatusCreativePending, DealStatusCancelled, DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut},
	DealStatusCreativePending:   {DealStatusCreativeSubmitted, DealStatusCancelled, DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut},
	DealStatusCreativeSubmitted: {DealStatusCreativeApproved, DealStatusCreativeRevision, DealStatusCancelled, DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut},
	DealStatusCreativeRevision:  {DealStatusCreativeSubmitted, DealStatusCancelled, DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut},
	DealStatusCreativeApproved:  {DealStatusPosted, DealStatusCancelled, DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut},
	DealStatusPosted:            {DealStatusTracking, DealStatusDisputed, DealStatusTimedOut},
	DealStatusTracking:          {DealStatusVerified, DealStatusFailed, DealStatusDisputed, DealStatusTimedOut},
	DealStatusVerified:          {DealStatusCompleted},
	DealStatusFailed:            {DealStatusRefunded, DealStatusDisputed},
	DealStatusDisputed:          {DealStatusRefunded, DealStatusCompleted},
	DealStatusTimedOut:          {DealStatusRefunded},
	DealStatusCompleted:         {},
	DealStatusCancelled:         {},
	DealStatusRefunded:          {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidDealTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Soft timeout budget per state, in hours. States not listed have no timer;
// tracking has a per-deal window instead (VerificationWindowHours).
var dealStateTimeoutHours = map[string]int{
	DealStatusPendingPayment:    24,
	DealStatusFunded:            72,
	DealStatusCreativePending:   72,
	DealStatusCreativeSubmitted: 96,
	DealStatusCreativeRevision:  72,
	DealStatusCreativeApproved:  168,
}

// TimeoutFor returns when a deal entering the given state at `from` times out,
// or nil when the state has no soft timer.
func TimeoutFor(status string, from time.Time) *time.Time {
	hours, ok := dealStateTimeoutHours[status]
	if !ok {
		return nil
	}
	t := from.Add(time.Duration(hours) * time.Hour)
	return &t
}

// IsSettled reports states that set completed_at (no further work happens on
// the deal itself, though TimedOut/Failed can still settle into Refunded).
func IsSettled(status string) bool {
	switch status {
	case DealStatusCompleted, DealStatusCancelled, DealStatusRefunded, DealStatusFailed, DealStatusTimedOut:
		return true
	}
	return false
}

// IsTerminal reports states with zero outgoing transitions.
func IsTerminal(status string) bool {
	switch status {
	case DealStatusCompleted, DealStatusCancelled, DealStatusRefunded:
		return true
	}
	return false
}

type Deal struct {
	ID                      int64      `json:"id"`
	ChannelID               int64      `json:"channel_id"`
	AdvertiserUserID        int64      `json:"advertiser_user_id"`
	AdFormatID              int64      `json:"ad_format_id"`
	Status                  string     `json:"status"`
	Amount                  string     `json:"amount"` // fixed-decimal as string
	OwnerAlias              string     `json:"owner_alias"`
	AdvertiserAlias         string     `json:"advertiser_alias"`
	EscrowAddress           *string    `json:"escrow_address,omitempty"`
	EscrowKeyEncrypted      *string    `json:"-"`
	TimeoutAt               *time.Time `json:"timeout_at,omitempty"`
	VerificationWindowHours int        `json:"verification_window_hours"`
	TrackingStartedAt       *time.Time `json:"tracking_started_at,omitempty"`
	PostedPlatformID        *string    `json:"posted_platform_id,omitempty"`
	PostProofURL            *string    `json:"post_proof_url,omitempty"`
	ContentHash             *string    `json:"content_hash,omitempty"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// DealWithChannel embeds Deal and adds channel info to avoid N+1 queries.
type DealWithChannel struct {
	Deal
	ChannelTitle   *string `json:"channel_title,omitempty"`
	ChannelOwnerID int64   `json:"channel_owner_id"`
	Platform       string  `json:"platform"`
}

// IsParty reports whether userID is the advertiser or the channel owner.
func (d *DealWithChannel) IsParty(userID int64) bool {
	return d.AdvertiserUserID == userID || d.ChannelOwnerID == userID
}
