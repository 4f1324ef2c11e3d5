package models

import "time"

// Dispute statuses
const (
	DisputeOpen             = "open"
	DisputeMutualResolution = "mutual_resolution"
	DisputeAdminReview      = "admin_review"
	DisputeResolved         = "resolved"
)

// Dispute outcomes
const (
	OutcomeReleaseToOwner     = "release_to_owner"
	OutcomeRefundToAdvertiser = "refund_to_advertiser"
	OutcomeSplit              = "split"
)

// MutualResolutionWindow is how long both parties have to agree before the
// dispute escalates to admin review.
const MutualResolutionWindow = 48 * time.Hour

func IsValidOutcome(o string) bool {
	return o == OutcomeReleaseToOwner || o == OutcomeRefundToAdvertiser || o == OutcomeSplit
}

type Dispute struct {
	ID                   int64      `json:"id"`
	DealID               int64      `json:"deal_id"`
	OpenedByUserID       int64      `json:"opened_by_user_id"`
	Reason               string     `json:"reason"`
	Status               string     `json:"status"`
	MutualDeadline       time.Time  `json:"mutual_deadline"`
	OwnerProposal        *string    `json:"owner_proposal,omitempty"`
	OwnerSplitPercent    *int       `json:"owner_split_percent,omitempty"`
	AdvertiserProposal   *string    `json:"advertiser_proposal,omitempty"`
	AdvertiserSplitPct   *int       `json:"advertiser_split_percent,omitempty"`
	ResolvedOutcome      *string    `json:"resolved_outcome,omitempty"`
	ResolvedSplitPercent *int       `json:"resolved_split_percent,omitempty"`
	ResolvedByUserID     *int64     `json:"resolved_by_user_id,omitempty"`
	ResolvedReason       *string    `json:"resolved_reason,omitempty"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	EscalatedAt          *time.Time `json:"escalated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Agreement returns the agreed outcome and split when both parties proposed
// matching resolutions. For split outcomes the percentages must match too.
func (d *Dispute) Agreement() (outcome string, splitPct *int, ok bool) {
	if d.OwnerProposal == nil || d.AdvertiserProposal == nil {
		return "", nil, false
	}
	if *d.OwnerProposal != *d.AdvertiserProposal {
		return "", nil, false
	}
	if *d.OwnerProposal == OutcomeSplit {
		if d.OwnerSplitPercent == nil || d.AdvertiserSplitPct == nil || *d.OwnerSplitPercent != *d.AdvertiserSplitPct {
			return "", nil, false
		}
		return OutcomeSplit, d.OwnerSplitPercent, true
	}
	return *d.OwnerProposal, nil, true
}

// CounterProposal returns the other party's proposal, if they made one.
func (d *Dispute) CounterProposal(isOwner bool) (outcome string, splitPct *int, ok bool) {
	if isOwner {
		if d.AdvertiserProposal == nil {
			return "", nil, false
		}
		return *d.AdvertiserProposal, d.AdvertiserSplitPct, true
	}
	if d.OwnerProposal == nil {
		return "", nil, false
	}
	return *d.OwnerProposal, d.OwnerSplitPercent, true
}

type DisputeEvidence struct {
	ID          int64     `json:"id"`
	DisputeID   int64     `json:"dispute_id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	URL         *string   `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
