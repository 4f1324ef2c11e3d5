package dto

import "github.com/sponsorbridge/backend/internal/services"

type TelegramAuthRequest struct {
	InitData string `json:"init_data"`
	Role     string `json:"role"`
}

type SetPayoutAddressRequest struct {
	Address string `json:"address"`
}

type RegisterChannelRequest struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
}

type AdFormatRequest = services.AdFormatInput

type CreateDealRequest = services.CreateDealInput

type SubmitCreativeRequest struct {
	Text      string `json:"text"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

type RequestRevisionRequest struct {
	Notes string `json:"notes"`
}

type PostProofRequest struct {
	PostURL string `json:"post_url"`
}

type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

type DisputeEvidenceRequest struct {
	Description string  `json:"description"`
	URL         *string `json:"url"`
}

type DisputeProposalRequest struct {
	Outcome      string `json:"outcome"`
	SplitPercent *int   `json:"split_percent"`
}

type AdminResolveRequest struct {
	Outcome      string `json:"outcome"`
	SplitPercent *int   `json:"split_percent"`
	Reason       string `json:"reason"`
}
