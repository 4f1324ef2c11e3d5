package platform

import (
	"context"
	"fmt"

	"github.com/sponsorbridge/backend/internal/apperr"
)

// PostMetrics is one metrics snapshot for a published post. Nil pointer fields
// mean the platform does not expose that metric, which is distinct from zero.
type PostMetrics struct {
	Exists   bool
	Views    *int64
	Likes    *int64
	Comments *int64
	Shares   *int64
}

type ChannelInfo struct {
	Title       string
	Description string
	Subscribers *int
	AvgViews    *int
	Language    *string
	Verified    bool
}

// PostRef identifies a post on its platform.
type PostRef struct {
	ChannelID string
	PostID    string
}

// Adapter is the capability contract every content platform implements.
type Adapter interface {
	Platform() string

	FetchChannelInfo(ctx context.Context, channelID string) (*ChannelInfo, error)

	// CanPost reports whether the platform supports automated publishing.
	// When false, creators post manually and submit the proof URL.
	CanPost() bool
	PublishPost(ctx context.Context, channelID, text, mediaURL string) (postID string, err error)

	VerifyPostExists(ctx context.Context, ref PostRef) (bool, error)
	FetchPostMetrics(ctx context.Context, ref PostRef) (*PostMetrics, error)

	ParsePostURL(rawURL string) (*PostRef, error)
	PostURL(ref PostRef) string
	ChannelURL(channelID string) string
}

// AdminVerifier is the optional admin-discovery capability. Callers
// feature-test with a type assertion.
type AdminVerifier interface {
	VerifyUserAdmin(ctx context.Context, channelID string, externalUserID int64) (bool, error)
	FetchAdmins(ctx context.Context, channelID string) ([]int64, error)
}

// ContentFetcher is the optional capability used for post-tamper detection:
// returns the current post text (or a stable rendering of it) and existence.
type ContentFetcher interface {
	FetchPostContent(ctx context.Context, ref PostRef) (content string, exists bool, err error)
}

// Registry maps platform tag -> adapter. Populated at startup, read-only after.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Platform()] = a
}

func (r *Registry) Get(platform string) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAdapterMissing, platform)
	}
	return a, nil
}
