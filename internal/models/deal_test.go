package models

import (
	"testing"
	"time"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{DealStatusPendingPayment, DealStatusFunded, true},
		{DealStatusFunded, DealStatusCreativePending, true},
		{DealStatusCreativePending, DealStatusCreativeSubmitted, true},
		{DealStatusCreativeSubmitted, DealStatusCreativeApproved, true},
		{DealStatusCreativeSubmitted, DealStatusCreativeRevision, true},
		{DealStatusCreativeRevision, DealStatusCreativeSubmitted, true},
		{DealStatusCreativeApproved, DealStatusPosted, true},
		{DealStatusPosted, DealStatusTracking, true},
		{DealStatusTracking, DealStatusVerified, true},
		{DealStatusVerified, DealStatusCompleted, true},

		// Failure and refund paths
		{DealStatusTracking, DealStatusFailed, true},
		{DealStatusFailed, DealStatusRefunded, true},
		{DealStatusTimedOut, DealStatusRefunded, true},
		{DealStatusDisputed, DealStatusRefunded, true},
		{DealStatusDisputed, DealStatusCompleted, true},

		// Cancellation paths
		{DealStatusPendingPayment, DealStatusCancelled, true},
		{DealStatusFunded, DealStatusCancelled, true},
		{DealStatusCreativeSubmitted, DealStatusCancelled, true},
		{DealStatusCreativeApproved, DealStatusCancelled, true},

		// Disputes open from any funded, unsettled state
		{DealStatusFunded, DealStatusDisputed, true},
		{DealStatusPosted, DealStatusDisputed, true},
		{DealStatusTracking, DealStatusDisputed, true},
		{DealStatusFailed, DealStatusDisputed, true},

		// Invalid transitions
		{DealStatusPendingPayment, DealStatusDisputed, false},
		{DealStatusPendingPayment, DealStatusCreativePending, false},
		{DealStatusPosted, DealStatusCancelled, false},
		{DealStatusTracking, DealStatusCancelled, false},
		{DealStatusVerified, DealStatusRefunded, false},
		{DealStatusCompleted, DealStatusRefunded, false},
		{DealStatusRefunded, DealStatusCompleted, false},
		{DealStatusCancelled, DealStatusFunded, false},
		{"nonexistent", DealStatusFunded, false},
		{DealStatusFunded, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		DealStatusPendingPayment, DealStatusFunded,
		DealStatusCreativePending, DealStatusCreativeSubmitted,
		DealStatusCreativeRevision, DealStatusCreativeApproved,
		DealStatusPosted, DealStatusTracking, DealStatusVerified,
		DealStatusCompleted, DealStatusFailed, DealStatusCancelled,
		DealStatusRefunded, DealStatusDisputed, DealStatusTimedOut,
	}

	for _, status := range allStatuses {
		if _, ok := ValidDealTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidDealTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{DealStatusCompleted, DealStatusCancelled, DealStatusRefunded}
	for _, status := range terminal {
		transitions := ValidDealTransitions[status]
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
		if !IsTerminal(status) {
			t.Errorf("IsTerminal(%q) = false, want true", status)
		}
	}
}

func TestTimeoutFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		status string
		hours  int
	}{
		{DealStatusPendingPayment, 24},
		{DealStatusFunded, 72},
		{DealStatusCreativePending, 72},
		{DealStatusCreativeSubmitted, 96},
		{DealStatusCreativeRevision, 72},
		{DealStatusCreativeApproved, 168},
	}
	for _, tt := range tests {
		got := TimeoutFor(tt.status, now)
		if got == nil {
			t.Fatalf("TimeoutFor(%q) = nil, want %dh", tt.status, tt.hours)
		}
		want := now.Add(time.Duration(tt.hours) * time.Hour)
		if !got.Equal(want) {
			t.Errorf("TimeoutFor(%q) = %v, want %v", tt.status, got, want)
		}
	}

	// Tracking runs on the per-deal verification window, not a stage timer.
	for _, status := range []string{DealStatusTracking, DealStatusPosted, DealStatusVerified, DealStatusCompleted, DealStatusDisputed} {
		if got := TimeoutFor(status, now); got != nil {
			t.Errorf("TimeoutFor(%q) = %v, want nil", status, got)
		}
	}
}

func TestIsSettled(t *testing.T) {
	settled := []string{DealStatusCompleted, DealStatusCancelled, DealStatusRefunded, DealStatusFailed, DealStatusTimedOut}
	for _, status := range settled {
		if !IsSettled(status) {
			t.Errorf("IsSettled(%q) = false, want true", status)
		}
	}
	for _, status := range []string{DealStatusPendingPayment, DealStatusTracking, DealStatusVerified, DealStatusDisputed} {
		if IsSettled(status) {
			t.Errorf("IsSettled(%q) = true, want false", status)
		}
	}

	// Failed and TimedOut settle but still allow the refund edge.
	if IsTerminal(DealStatusFailed) || IsTerminal(DealStatusTimedOut) {
		t.Error("failed/timed_out must not be terminal, they still refund")
	}
}

func TestIsParty(t *testing.T) {
	d := &DealWithChannel{
		Deal:           Deal{AdvertiserUserID: 7},
		ChannelOwnerID: 11,
	}
	if !d.IsParty(7) || !d.IsParty(11) {
		t.Error("advertiser and channel owner are parties")
	}
	if d.IsParty(13) {
		t.Error("unrelated user is not a party")
	}
}
