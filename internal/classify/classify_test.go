package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"yt-transcriber/internal/model"
)

func TestClassify_BotDetected(t *testing.T) {
	tests := []string{
		"ERROR: Sign in to confirm you're not a bot.",
		"HTTP Error 429: Too Many Requests",
		"HTTP Error 403: Forbidden",
		"please solve the CAPTCHA to continue",
		"we have detected unusual traffic from your network",
	}
	for _, text := range tests {
		assert.Equal(t, model.KindPlatformBlocked, Classify(text), "text %q", text)
	}
}

func TestClassify_SessionExpired(t *testing.T) {
	tests := []string{
		"The provided YouTube account cookies are no longer valid",
		"ERROR: cookies have expired, please refresh them",
		"Please sign in to view this video",
		"your session has expired",
	}
	for _, text := range tests {
		assert.Equal(t, model.KindSessionExpired, Classify(text), "text %q", text)
	}
}

func TestClassify_BotPatternsCheckedFirst(t *testing.T) {
	// Both tables match; the block table wins.
	assert.Equal(t, model.KindPlatformBlocked, Classify("too many requests: please sign in and try again"))
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, model.KindPlatformBlocked, Classify("TOO MANY REQUESTS"))
}

func TestClassify_NoMatch(t *testing.T) {
	kind := Classify("ffmpeg exited with status 1")
	assert.Equal(t, model.KindOther, kind)
	assert.True(t, kind.Retryable())
}
