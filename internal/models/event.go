package models

import "time"

// DealEvent is the append-only status ledger. A status change and its event
// row commit in the same transaction; the log is deleted at purge time.
type DealEvent struct {
	ID          int64          `json:"id"`
	DealID      int64          `json:"deal_id"`
	EventType   string         `json:"event_type"`
	OldStatus   *string        `json:"old_status,omitempty"`
	NewStatus   *string        `json:"new_status,omitempty"`
	ActorUserID *int64         `json:"actor_user_id,omitempty"` // nil for system transitions
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
