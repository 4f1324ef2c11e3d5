package notify

import "context"

// Event types published on the deal stream.
const (
	EventDealStatusChanged  = "deal_status_changed"
	EventPaymentReceived    = "payment_received"
	EventRequirementUpdated = "requirement_updated"
	EventCreativeSubmitted  = "creative_submitted"
	EventDisputeOpened      = "dispute_opened"
	EventDisputeResolved    = "dispute_resolved"
	EventPayoutCompleted    = "payout_completed"
	EventDealPurged         = "deal_purged"
)

// DealStream is the channel websocket fan-out listens on.
const DealStream = "events:deal"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
