package models

import "time"

// Requirement metric types
const (
	MetricPostExists = "post_exists"
	MetricViews      = "views"
	MetricLikes      = "likes"
	MetricComments   = "comments"
	MetricShares     = "shares"
	MetricCustom     = "custom"
)

// Requirement statuses. Met and Waived are latched: once set they never
// revert, regardless of later metric snapshots. EditDetected flags a
// post_exists requirement whose content hash stopped matching; the advertiser
// can waive it or let the verification window expire.
const (
	RequirementPending      = "pending"
	RequirementMet          = "met"
	RequirementWaived       = "waived"
	RequirementEditDetected = "edit_detected"
)

var AllMetricTypes = []string{
	MetricPostExists, MetricViews, MetricLikes, MetricComments, MetricShares, MetricCustom,
}

func IsValidMetricType(t string) bool {
	for _, m := range AllMetricTypes {
		if m == t {
			return true
		}
	}
	return false
}

type DealRequirement struct {
	ID            int64      `json:"id"`
	DealID        int64      `json:"deal_id"`
	MetricType    string     `json:"metric_type"`
	TargetValue   int64      `json:"target_value"`
	CurrentValue  int64      `json:"current_value"`
	Status        string     `json:"status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	MetAt         *time.Time `json:"met_at,omitempty"`
}

// Satisfied reports whether the requirement no longer blocks verification.
func (r *DealRequirement) Satisfied() bool {
	return r.Status == RequirementMet || r.Status == RequirementWaived
}
