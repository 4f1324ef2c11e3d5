package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sponsorbridge/backend/internal/models"
)

func TestRequirementWaivable(t *testing.T) {
	waivable := map[string]bool{
		models.DealStatusTracking: true,
		models.DealStatusFailed:   true,
	}

	for status := range models.ValidDealTransitions {
		assert.Equal(t, waivable[status], requirementWaivable(status), status)
	}
}

// A deal whose window closes short of its targets fails, and the advertiser
// can still waive the shortfall afterwards — but a failed deal never jumps
// straight to verified; it settles through refund or dispute.
func TestFailedWindowThenWaive(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &models.Deal{
		Status:                  models.DealStatusTracking,
		TrackingStartedAt:       &start,
		VerificationWindowHours: 24,
	}
	reqs := []models.DealRequirement{
		{MetricType: models.MetricViews, TargetValue: 10000, Status: models.RequirementPending},
		{MetricType: models.MetricPostExists, TargetValue: 1, Status: models.RequirementPending},
	}

	// Two snapshots inside the window, both short of the views target.
	for _, views := range []int64{500, 800} {
		m := metrics(true, views)
		for i := range reqs {
			reqs[i].CurrentValue, reqs[i].Status = EvaluateRequirement(&reqs[i], m, false)
		}
		assert.False(t, AllSatisfied(reqs))
	}
	assert.Equal(t, models.RequirementMet, reqs[1].Status, "post_exists latched met")
	assert.Equal(t, int64(800), reqs[0].CurrentValue)

	// The window closes one second past the deadline.
	now := start.Add(24*time.Hour + time.Second)
	assert.True(t, WindowExpired(d, now))

	d.Status = models.DealStatusFailed

	// Waiving remains open on the failed deal.
	assert.True(t, requirementWaivable(d.Status))
	reqs[0].Status = models.RequirementWaived
	assert.True(t, AllSatisfied(reqs))

	// No auto-advance: failed only settles through refund or dispute.
	assert.False(t, models.IsValidTransition(models.DealStatusFailed, models.DealStatusVerified))
	assert.True(t, models.IsValidTransition(models.DealStatusFailed, models.DealStatusRefunded))
	assert.True(t, models.IsValidTransition(models.DealStatusFailed, models.DealStatusDisputed))
}
