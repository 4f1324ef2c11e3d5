package telegram

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/platform"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Adapter scrapes the public t.me preview pages. Channel IDs are public
// usernames without the @ prefix; post IDs are numeric message IDs.
type Adapter struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
}

func New(timeoutMS, maxRetries int, log *zap.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		log:        log,
		maxRetries: maxRetries,
	}
}

func (a *Adapter) Platform() string { return "telegram" }

// CanPost is false: Telegram has no public posting API for arbitrary
// channels, so creators publish manually and submit the post URL.
func (a *Adapter) CanPost() bool { return false }

func (a *Adapter) PublishPost(_ context.Context, _, _, _ string) (string, error) {
	return "", fmt.Errorf("telegram: automated publishing not supported")
}

var postURLRE = regexp.MustCompile(`^https?://t\.me/([A-Za-z0-9_]{3,32})/(\d+)(?:\?.*)?$`)

func (a *Adapter) ParsePostURL(rawURL string) (*platform.PostRef, error) {
	m := postURLRE.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnparseableURL, rawURL)
	}
	return &platform.PostRef{ChannelID: m[1], PostID: m[2]}, nil
}

func (a *Adapter) PostURL(ref platform.PostRef) string {
	return fmt.Sprintf("https://t.me/%s/%s", ref.ChannelID, ref.PostID)
}

func (a *Adapter) ChannelURL(channelID string) string {
	return fmt.Sprintf("https://t.me/%s", channelID)
}

func (a *Adapter) FetchChannelInfo(ctx context.Context, channelID string) (*platform.ChannelInfo, error) {
	doc, err := a.fetchDoc(ctx, fmt.Sprintf("https://t.me/s/%s", channelID))
	if err != nil {
		return nil, err
	}

	info := &platform.ChannelInfo{
		Title:       strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text()),
		Description: strings.TrimSpace(doc.Find(".tgme_channel_info_description").First().Text()),
	}
	if info.Title == "" {
		// The /s/ preview redirects to a bare profile page for non-channels.
		info.Title = strings.TrimSpace(doc.Find(".tgme_page_title").First().Text())
	}
	if info.Title == "" {
		return nil, fmt.Errorf("telegram channel %s: %w", channelID, apperr.ErrNotFound)
	}

	doc.Find(".tgme_channel_info_counter").Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(s.Find(".counter_type").Text()))
		if strings.Contains(label, "subscriber") || strings.Contains(label, "member") {
			n := parseCount(strings.TrimSpace(s.Find(".counter_value").Text()))
			if n > 0 {
				info.Subscribers = &n
			}
		}
	})

	info.Verified = doc.Find(".tgme_channel_info_header_title .verified-icon").Length() > 0

	// Average views over the visible posts, plus a language guess from
	// their text. Both are best-effort.
	var allText strings.Builder
	total, count := 0, 0
	doc.Find(".tgme_widget_message_wrap").Each(func(i int, s *goquery.Selection) {
		if i >= 20 {
			return
		}
		if n := parseCount(strings.TrimSpace(s.Find(".tgme_widget_message_views").Text())); n > 0 {
			total += n
			count++
		}
		allText.WriteString(strings.TrimSpace(s.Find(".tgme_widget_message_text").Text()))
		allText.WriteString(" ")
	})
	if count > 0 {
		avg := total / count
		info.AvgViews = &avg
	}
	if lang := guessLanguage(allText.String()); lang != "unknown" {
		info.Language = &lang
	}

	return info, nil
}

func (a *Adapter) VerifyPostExists(ctx context.Context, ref platform.PostRef) (bool, error) {
	_, exists, err := a.FetchPostContent(ctx, ref)
	return exists, err
}

// FetchPostMetrics returns existence plus views. Telegram previews expose
// no like/comment/share counters, so those stay nil.
func (a *Adapter) FetchPostMetrics(ctx context.Context, ref platform.PostRef) (*platform.PostMetrics, error) {
	doc, status, err := a.fetchPostDoc(ctx, ref)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &platform.PostMetrics{Exists: false}, nil
	}

	if doc.Find(".tgme_widget_message").Length() == 0 {
		return &platform.PostMetrics{Exists: false}, nil
	}

	m := &platform.PostMetrics{Exists: true}
	if n := parseCount(strings.TrimSpace(doc.Find(".tgme_widget_message_views").First().Text())); n > 0 {
		v := int64(n)
		m.Views = &v
	}
	return m, nil
}

// FetchPostContent returns the post text for tamper checks. A media-only
// post yields empty text with exists=true.
func (a *Adapter) FetchPostContent(ctx context.Context, ref platform.PostRef) (string, bool, error) {
	doc, status, err := a.fetchPostDoc(ctx, ref)
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound {
		return "", false, nil
	}

	text := strings.TrimSpace(doc.Find(".tgme_widget_message_text").Text())
	if text == "" && doc.Find(".tgme_widget_message").Length() == 0 {
		return "", false, nil
	}
	return text, true, nil
}

func (a *Adapter) fetchPostDoc(ctx context.Context, ref platform.PostRef) (*goquery.Document, int, error) {
	url := fmt.Sprintf("https://t.me/%s/%s?embed=1", ref.ChannelID, ref.PostID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, http.StatusNotFound, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return doc, resp.StatusCode, nil
}

func (a *Adapter) fetchDoc(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUA)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return doc, nil
	}
	a.log.Warn("telegram fetch failed", zap.String("url", url), zap.Error(lastErr))
	return nil, lastErr
}

var viewCountRE = regexp.MustCompile(`[\d,.]+[KkMm]?`)

func parseCount(text string) int {
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ",", "")

	match := viewCountRE.FindString(text)
	if match == "" {
		return 0
	}

	multiplier := 1
	if strings.HasSuffix(match, "K") || strings.HasSuffix(match, "k") {
		multiplier = 1000
		match = match[:len(match)-1]
	} else if strings.HasSuffix(match, "M") || strings.HasSuffix(match, "m") {
		multiplier = 1000000
		match = match[:len(match)-1]
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(f * float64(multiplier))
}

func guessLanguage(text string) string {
	if text == "" {
		return "unknown"
	}

	cyrillic, latin, arabic, cjk, total := 0, 0, 0, 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			cjk++
		}
	}
	if total == 0 {
		return "unknown"
	}

	switch {
	case float64(cyrillic)/float64(total) >= 0.3:
		return "ru"
	case float64(arabic)/float64(total) >= 0.3:
		return "ar"
	case float64(cjk)/float64(total) >= 0.3:
		return "zh"
	case float64(latin)/float64(total) >= 0.3:
		return "en"
	default:
		return "other"
	}
}
