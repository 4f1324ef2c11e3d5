package models

import "time"

// DealReceipt is written once at purge time and never updated. DataHash is the
// canonical-JSON SHA-256 over the purged-away fields, proving the deal
// happened without retaining its sensitive payload.
type DealReceipt struct {
	ID              int64     `json:"id"`
	DealID          int64     `json:"deal_id"`
	ChannelTitle    *string   `json:"channel_title,omitempty"`
	OwnerAlias      string    `json:"owner_alias"`
	AdvertiserAlias string    `json:"advertiser_alias"`
	Amount          string    `json:"amount"`
	FinalStatus     string    `json:"final_status"`
	CompletedAt     time.Time `json:"completed_at"`
	DataHash        string    `json:"data_hash"`
	CreatedAt       time.Time `json:"created_at"`
}
