package models

import "time"

// Creative statuses
const (
	CreativeDraft             = "draft"
	CreativeSubmittedStatus   = "submitted"
	CreativeApprovedStatus    = "approved"
	CreativeRevisionRequested = "revision_requested"
)

// Creative rows keep text and media URL encrypted at rest; the decrypted view
// type lives in the creatives service.
type Creative struct {
	ID                int64     `json:"id"`
	DealID            int64     `json:"deal_id"`
	Version           int       `json:"version"`
	TextEncrypted     *string   `json:"-"`
	MediaURLEncrypted *string   `json:"-"`
	MediaType         *string   `json:"media_type,omitempty"`
	SubmittedByUserID int64     `json:"submitted_by_user_id"`
	ReviewerNotes     *string   `json:"reviewer_notes,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}
