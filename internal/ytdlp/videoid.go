package ytdlp

import (
	"regexp"

	"yt-transcriber/internal/model"
)

// Supported URL shapes, first match wins: short link, canonical watch URL,
// embed URL, shorts URL, bare 11-character ID.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^([A-Za-z0-9_-]{11})$`),
}

// ExtractVideoID resolves the 11-character video ID from any supported URL
// shape. No match is a fatal KindInvalidInput; the job is never retried for
// a malformed URL.
func ExtractVideoID(raw string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1], nil
		}
	}
	return "", model.NewError(model.KindInvalidInput, "unrecognized video URL %q", raw)
}

// CanonicalURL returns the watch-page form for a video ID.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
