package models

import "time"

// Platform tags
const (
	PlatformTelegram = "telegram"
	PlatformYouTube  = "youtube"
	PlatformTwitter  = "twitter"
)

type Channel struct {
	ID                int64      `json:"id"`
	Platform          string     `json:"platform"`
	PlatformChannelID string     `json:"platform_channel_id"`
	OwnerUserID       int64      `json:"owner_user_id"`
	Title             *string    `json:"title,omitempty"`
	Subscribers       *int       `json:"subscribers,omitempty"`
	AvgViews          *int       `json:"avg_views,omitempty"`
	PremiumFraction   *float64   `json:"premium_fraction,omitempty"`
	Language          *string    `json:"language,omitempty"`
	Verified          bool       `json:"verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerificationToken *string    `json:"-"`
	StatsRefreshedAt  *time.Time `json:"stats_refreshed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Ad format type tags (platform-dependent).
const (
	AdFormatPost          = "post"
	AdFormatForward       = "forward"
	AdFormatStory         = "story"
	AdFormatVideo         = "video"
	AdFormatReel          = "reel"
	AdFormatTweet         = "tweet"
	AdFormatCommunityPost = "community_post"
	AdFormatCustom        = "custom"
)

var AllAdFormatTypes = []string{
	AdFormatPost, AdFormatForward, AdFormatStory, AdFormatVideo,
	AdFormatReel, AdFormatTweet, AdFormatCommunityPost, AdFormatCustom,
}

func IsValidAdFormatType(t string) bool {
	for _, f := range AllAdFormatTypes {
		if f == t {
			return true
		}
	}
	return false
}

type AdFormat struct {
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	Type      string    `json:"type"`
	Label     string    `json:"label"`
	Price     string    `json:"price"` // fixed-decimal as string
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
