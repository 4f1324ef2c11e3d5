package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorbridge/backend/internal/apperr"
)

func TestParsePostURL(t *testing.T) {
	a := &Adapter{}

	tests := []struct {
		url     string
		channel string
		post    string
		wantErr bool
	}{
		{"https://t.me/technews/482", "technews", "482", false},
		{"http://t.me/some_channel/1", "some_channel", "1", false},
		{"https://t.me/technews/482?single", "technews", "482", false},
		{"  https://t.me/technews/482 ", "technews", "482", false},
		{"https://t.me/technews", "", "", true},
		{"https://t.me/s/technews/482", "", "", true},
		{"https://example.com/technews/482", "", "", true},
		{"not a url", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ref, err := a.ParsePostURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrUnparseableURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channel, ref.ChannelID)
			assert.Equal(t, tt.post, ref.PostID)
		})
	}
}

func TestPostURLRoundTrip(t *testing.T) {
	a := &Adapter{}
	ref, err := a.ParsePostURL("https://t.me/technews/482")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/technews/482", a.PostURL(*ref))
	assert.Equal(t, "https://t.me/technews", a.ChannelURL(ref.ChannelID))
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1.2K", 1200},
		{"1.5M", 1500000},
		{"123", 123},
		{"12,345", 12345},
		{"1 234", 1234},
		{"5.6K views", 5600},
		{"0", 0},
		{"", 0},
		{"no number", 0},
		{"42k", 42000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseCount(tt.input))
		})
	}
}

func TestGuessLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Привет мир, это тестовый текст на русском языке", "ru"},
		{"Hello world, this is a test text in English", "en"},
		{"مرحبا بالعالم", "ar"},
		{"", "unknown"},
		{"12345 !!!", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, guessLanguage(tt.input))
		})
	}
}

func TestCanPost(t *testing.T) {
	a := &Adapter{}
	assert.False(t, a.CanPost())
	_, err := a.PublishPost(t.Context(), "technews", "text", "")
	assert.Error(t, err)
}
