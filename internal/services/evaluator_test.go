package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/platform"
)

func i64(n int64) *int64 { return &n }

func metrics(exists bool, views int64) *platform.PostMetrics {
	return &platform.PostMetrics{Exists: exists, Views: i64(views)}
}

func TestEvaluateRequirementPostExists(t *testing.T) {
	req := &models.DealRequirement{MetricType: models.MetricPostExists, TargetValue: 1}

	// No snapshot: nothing changes.
	v, s := EvaluateRequirement(req, nil, false)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, "", s)

	// Post is live.
	v, s = EvaluateRequirement(req, metrics(true, 0), false)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, models.RequirementMet, s)

	// Deleted before ever being met.
	req.Status = models.RequirementPending
	v, s = EvaluateRequirement(req, metrics(false, 0), false)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, models.RequirementPending, s)
}

func TestEvaluateRequirementLatching(t *testing.T) {
	met := &models.DealRequirement{
		MetricType:   models.MetricViews,
		TargetValue:  1000,
		CurrentValue: 1200,
		Status:       models.RequirementMet,
	}

	// Views dropped below target after being met; met stays.
	v, s := EvaluateRequirement(met, metrics(true, 800), false)
	assert.Equal(t, int64(1200), v)
	assert.Equal(t, models.RequirementMet, s)

	// Post deleted after post_exists was met; met stays.
	existed := &models.DealRequirement{
		MetricType:   models.MetricPostExists,
		TargetValue:  1,
		CurrentValue: 1,
		Status:       models.RequirementMet,
	}
	v, s = EvaluateRequirement(existed, metrics(false, 0), false)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, models.RequirementMet, s)

	// Waived latches the same way.
	waived := &models.DealRequirement{
		MetricType: models.MetricViews,
		Status:     models.RequirementWaived,
	}
	_, s = EvaluateRequirement(waived, metrics(true, 999999), false)
	assert.Equal(t, models.RequirementWaived, s)
}

func TestEvaluateRequirementNumeric(t *testing.T) {
	req := &models.DealRequirement{
		MetricType:  models.MetricViews,
		TargetValue: 1000,
		Status:      models.RequirementPending,
	}

	v, s := EvaluateRequirement(req, metrics(true, 400), false)
	assert.Equal(t, int64(400), v)
	assert.Equal(t, models.RequirementPending, s)

	v, s = EvaluateRequirement(req, metrics(true, 1000), false)
	assert.Equal(t, int64(1000), v)
	assert.Equal(t, models.RequirementMet, s)

	// Metric the platform cannot report: stays pending, value untouched.
	req.CurrentValue = 400
	v, s = EvaluateRequirement(req, &platform.PostMetrics{Exists: true}, false)
	assert.Equal(t, int64(400), v)
	assert.Equal(t, models.RequirementPending, s)

	// Missing post never fails a numeric requirement by itself.
	v, s = EvaluateRequirement(req, metrics(false, 0), false)
	assert.Equal(t, int64(400), v)
	assert.Equal(t, models.RequirementPending, s)
}

func TestEvaluateRequirementTamper(t *testing.T) {
	req := &models.DealRequirement{
		MetricType:   models.MetricPostExists,
		TargetValue:  1,
		CurrentValue: 0,
		Status:       models.RequirementPending,
	}

	v, s := EvaluateRequirement(req, metrics(true, 0), true)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, models.RequirementEditDetected, s)

	// edit_detected holds until waived or the window closes; a clean snapshot
	// can clear it.
	req.Status = models.RequirementEditDetected
	v, s = EvaluateRequirement(req, metrics(true, 0), false)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, models.RequirementMet, s)

	// Once met, tamper no longer moves the row.
	req.Status = models.RequirementMet
	req.CurrentValue = 1
	_, s = EvaluateRequirement(req, metrics(true, 0), true)
	assert.Equal(t, models.RequirementMet, s)
}

func TestEvaluateRequirementCustom(t *testing.T) {
	req := &models.DealRequirement{
		MetricType: models.MetricCustom,
		Status:     models.RequirementPending,
	}

	// Snapshots never move custom requirements; only manual confirmation does.
	v, s := EvaluateRequirement(req, metrics(true, 100000), false)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, models.RequirementPending, s)
}

func TestAllSatisfied(t *testing.T) {
	reqs := []models.DealRequirement{
		{Status: models.RequirementMet},
		{Status: models.RequirementWaived},
	}
	assert.True(t, AllSatisfied(reqs))

	reqs = append(reqs, models.DealRequirement{Status: models.RequirementPending})
	assert.False(t, AllSatisfied(reqs))

	reqs[2].Status = models.RequirementEditDetected
	assert.False(t, AllSatisfied(reqs))

	assert.True(t, AllSatisfied(nil))
}

func TestWindowExpired(t *testing.T) {
	now := time.Now()

	d := &models.Deal{VerificationWindowHours: 48}
	assert.False(t, WindowExpired(d, now), "no tracking start means no window")

	start := now.Add(-24 * time.Hour)
	d.TrackingStartedAt = &start
	assert.False(t, WindowExpired(d, now))

	start = now.Add(-49 * time.Hour)
	d.TrackingStartedAt = &start
	assert.True(t, WindowExpired(d, now))
}
