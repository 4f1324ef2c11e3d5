package models

import "time"

// User roles
const (
	RoleCreatorOnly    = "creator"
	RoleAdvertiserOnly = "advertiser"
	RoleBoth           = "both"
)

type User struct {
	ID            int64     `json:"id"`
	ExternalID    int64     `json:"external_id"` // platform-neutral identity
	Username      *string   `json:"username,omitempty"`
	Role          string    `json:"role"`
	PayoutAddress *string   `json:"payout_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastActiveAt  time.Time `json:"last_active_at"`
}

// MergeRole upgrades a role monotonically: creator+advertiser = both.
func MergeRole(current, incoming string) string {
	if current == incoming || current == RoleBoth {
		return current
	}
	if incoming == RoleBoth {
		return RoleBoth
	}
	if (current == RoleCreatorOnly && incoming == RoleAdvertiserOnly) ||
		(current == RoleAdvertiserOnly && incoming == RoleCreatorOnly) {
		return RoleBoth
	}
	return incoming
}
