package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/privacy"
)

func TestReceiptHashFields(t *testing.T) {
	completed := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	escrow := "EQescrow-wallet"
	proof := "https://t.me/somechannel/42"
	contentHash := "deadbeef"
	d := &models.Deal{
		ID:               7,
		ChannelID:        3,
		AdvertiserUserID: 9,
		Amount:           "125.5",
		Status:           models.DealStatusCompleted,
		CompletedAt:      &completed,
		EscrowAddress:    &escrow,
		PostProofURL:     &proof,
		ContentHash:      &contentHash,
	}

	fields := receiptHashFields(d)
	want := []string{
		"deal_id", "channel_id", "advertiser_id",
		"amount", "final_status", "completed_at", "escrow_address",
	}
	assert.Len(t, fields, len(want))
	for _, k := range want {
		assert.Contains(t, fields, k)
	}
	assert.Equal(t, "2026-02-10T09:30:00Z", fields["completed_at"])

	h1, err := privacy.HashDealData(fields)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{64}$`, h1)

	h2, err := privacy.HashDealData(receiptHashFields(d))
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash depends only on the deal, not on map identity")

	// Deals that never got an escrow address hash without that field.
	d.EscrowAddress = nil
	assert.NotContains(t, receiptHashFields(d), "escrow_address")
}
