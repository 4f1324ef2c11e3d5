package services

import (
	"time"

	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/platform"
)

// EvaluateRequirement folds one metric snapshot into a requirement and
// returns the row's next value and status.
//
// Rules:
//   - met and waived latch; later snapshots never demote them
//   - a nil metric means the platform cannot report it; the requirement
//     stays pending rather than failing
//   - edit_detected latches until the advertiser waives or the window ends
//   - custom requirements only move through manual confirmation
func EvaluateRequirement(req *models.DealRequirement, m *platform.PostMetrics, tampered bool) (int64, string) {
	if req.Satisfied() {
		return req.CurrentValue, req.Status
	}

	switch req.MetricType {
	case models.MetricCustom:
		return req.CurrentValue, req.Status

	case models.MetricPostExists:
		if m == nil {
			return req.CurrentValue, req.Status
		}
		if !m.Exists {
			return 0, models.RequirementPending
		}
		if tampered {
			return req.CurrentValue, models.RequirementEditDetected
		}
		return 1, models.RequirementMet

	default:
		if m == nil || !m.Exists {
			return req.CurrentValue, req.Status
		}
		observed := metricValue(m, req.MetricType)
		if observed == nil {
			return req.CurrentValue, req.Status
		}
		if *observed >= req.TargetValue {
			return *observed, models.RequirementMet
		}
		return *observed, models.RequirementPending
	}
}

func metricValue(m *platform.PostMetrics, metricType string) *int64 {
	switch metricType {
	case models.MetricViews:
		return m.Views
	case models.MetricLikes:
		return m.Likes
	case models.MetricComments:
		return m.Comments
	case models.MetricShares:
		return m.Shares
	}
	return nil
}

// AllSatisfied reports whether nothing blocks verification.
func AllSatisfied(reqs []models.DealRequirement) bool {
	for i := range reqs {
		if !reqs[i].Satisfied() {
			return false
		}
	}
	return true
}

// WindowExpired reports whether the verification window for a tracking deal
// has closed.
func WindowExpired(d *models.Deal, now time.Time) bool {
	if d.TrackingStartedAt == nil {
		return false
	}
	deadline := d.TrackingStartedAt.Add(time.Duration(d.VerificationWindowHours) * time.Hour)
	return now.After(deadline)
}
