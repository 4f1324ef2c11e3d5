package models

import "testing"

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestDisputeAgreement(t *testing.T) {
	tests := []struct {
		name        string
		dispute     Dispute
		wantOutcome string
		wantSplit   *int
		wantOK      bool
	}{
		{
			name:    "no proposals",
			dispute: Dispute{},
			wantOK:  false,
		},
		{
			name:    "one side only",
			dispute: Dispute{OwnerProposal: strp(OutcomeReleaseToOwner)},
			wantOK:  false,
		},
		{
			name: "matching release",
			dispute: Dispute{
				OwnerProposal:      strp(OutcomeReleaseToOwner),
				AdvertiserProposal: strp(OutcomeReleaseToOwner),
			},
			wantOutcome: OutcomeReleaseToOwner,
			wantOK:      true,
		},
		{
			name: "conflicting proposals",
			dispute: Dispute{
				OwnerProposal:      strp(OutcomeReleaseToOwner),
				AdvertiserProposal: strp(OutcomeRefundToAdvertiser),
			},
			wantOK: false,
		},
		{
			name: "matching split same percent",
			dispute: Dispute{
				OwnerProposal:      strp(OutcomeSplit),
				OwnerSplitPercent:  intp(60),
				AdvertiserProposal: strp(OutcomeSplit),
				AdvertiserSplitPct: intp(60),
			},
			wantOutcome: OutcomeSplit,
			wantSplit:   intp(60),
			wantOK:      true,
		},
		{
			name: "split with different percents",
			dispute: Dispute{
				OwnerProposal:      strp(OutcomeSplit),
				OwnerSplitPercent:  intp(70),
				AdvertiserProposal: strp(OutcomeSplit),
				AdvertiserSplitPct: intp(30),
			},
			wantOK: false,
		},
		{
			name: "split missing a percent",
			dispute: Dispute{
				OwnerProposal:      strp(OutcomeSplit),
				AdvertiserProposal: strp(OutcomeSplit),
				AdvertiserSplitPct: intp(50),
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, split, ok := tt.dispute.Agreement()
			if ok != tt.wantOK {
				t.Fatalf("Agreement() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if outcome != tt.wantOutcome {
				t.Errorf("Agreement() outcome = %q, want %q", outcome, tt.wantOutcome)
			}
			if (split == nil) != (tt.wantSplit == nil) {
				t.Fatalf("Agreement() split = %v, want %v", split, tt.wantSplit)
			}
			if split != nil && *split != *tt.wantSplit {
				t.Errorf("Agreement() split = %d, want %d", *split, *tt.wantSplit)
			}
		})
	}
}

func TestDisputeCounterProposal(t *testing.T) {
	tests := []struct {
		name        string
		dispute     Dispute
		isOwner     bool
		wantOutcome string
		wantSplit   *int
		wantOK      bool
	}{
		{
			name:    "owner accepts with nothing proposed",
			dispute: Dispute{},
			isOwner: true,
			wantOK:  false,
		},
		{
			name:    "owner accepts but only their own proposal exists",
			dispute: Dispute{OwnerProposal: strp(OutcomeReleaseToOwner)},
			isOwner: true,
			wantOK:  false,
		},
		{
			name: "owner accepts the advertiser's refund",
			dispute: Dispute{
				AdvertiserProposal: strp(OutcomeRefundToAdvertiser),
			},
			isOwner:     true,
			wantOutcome: OutcomeRefundToAdvertiser,
			wantOK:      true,
		},
		{
			name: "advertiser accepts the owner's split, percent carried over",
			dispute: Dispute{
				OwnerProposal:     strp(OutcomeSplit),
				OwnerSplitPercent: intp(40),
			},
			isOwner:     false,
			wantOutcome: OutcomeSplit,
			wantSplit:   intp(40),
			wantOK:      true,
		},
		{
			name:    "advertiser accepts with only their own proposal",
			dispute: Dispute{AdvertiserProposal: strp(OutcomeRefundToAdvertiser)},
			isOwner: false,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, split, ok := tt.dispute.CounterProposal(tt.isOwner)
			if ok != tt.wantOK {
				t.Fatalf("CounterProposal() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if outcome != tt.wantOutcome {
				t.Errorf("CounterProposal() outcome = %q, want %q", outcome, tt.wantOutcome)
			}
			if (split == nil) != (tt.wantSplit == nil) {
				t.Fatalf("CounterProposal() split = %v, want %v", split, tt.wantSplit)
			}
			if split != nil && *split != *tt.wantSplit {
				t.Errorf("CounterProposal() split = %d, want %d", *split, *tt.wantSplit)
			}
		})
	}
}

func TestIsValidOutcome(t *testing.T) {
	for _, o := range []string{OutcomeReleaseToOwner, OutcomeRefundToAdvertiser, OutcomeSplit} {
		if !IsValidOutcome(o) {
			t.Errorf("IsValidOutcome(%q) = false", o)
		}
	}
	if IsValidOutcome("keep_everything") {
		t.Error("unknown outcome accepted")
	}
}
