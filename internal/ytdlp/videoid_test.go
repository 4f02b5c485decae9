package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-transcriber/internal/model"
)

func TestExtractVideoID_SupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"short link", "https://youtu.be/dQw4w9WgXcQ"},
		{"short link with params", "https://youtu.be/dQw4w9WgXcQ?t=42"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&t=1s"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ"},
		{"example host watch url", "https://example.com/watch?v=dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractVideoID(tt.url)
			require.NoError(t, err)
			assert.Equal(t, "dQw4w9WgXcQ", id)
		})
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	tests := []string{
		"",
		"not a url",
		"https://example.com/",
		"https://www.youtube.com/watch?v=tooshort",
		"dQw4w9WgXcQdQw4w9WgXcQ", // bare but wrong length
	}
	for _, raw := range tests {
		_, err := ExtractVideoID(raw)
		require.Error(t, err, "input %q", raw)
		assert.Equal(t, model.KindInvalidInput, model.AsError(err).Kind)
	}
}

func TestExtractVideoID_NeverRetriesInvalidInput(t *testing.T) {
	_, err := ExtractVideoID("garbage")
	require.Error(t, err)
	assert.False(t, model.AsError(err).Retryable())
}
