// Package classify maps raw tool error text onto the failure taxonomy using
// literal pattern tables, so new platform phrases can be added without
// touching control flow.
package classify

import (
	"strings"

	"yt-transcriber/internal/model"
)

// Block phrases are checked before session phrases; within a table the first
// match wins.
var botDetectedPatterns = []string{
	"confirm you're not a bot",
	"confirm you are not a bot",
	"http error 403",
	"http error 429",
	"too many requests",
	"rate limit",
	"rate-limited",
	"captcha",
	"unusual traffic",
	"blocked it from",
}

var sessionExpiredPatterns = []string{
	"cookies have expired",
	"cookies are no longer valid",
	"please sign in",
	"sign in to confirm",
	"session has expired",
	"login required",
	"account cookies",
}

// Classify maps raw tool error text onto a failure kind. Retryability is the
// kind's own default unless the caller overrides it for its stage.
func Classify(rawErrorText string) model.Kind {
	text := strings.ToLower(rawErrorText)
	for _, p := range botDetectedPatterns {
		if strings.Contains(text, p) {
			return model.KindPlatformBlocked
		}
	}
	for _, p := range sessionExpiredPatterns {
		if strings.Contains(text, p) {
			return model.KindSessionExpired
		}
	}
	return model.KindOther
}

// IsAuthKind reports whether a kind came from platform-side blocking, which
// both tiers share as a root cause.
func IsAuthKind(kind model.Kind) bool {
	return kind == model.KindPlatformBlocked || kind == model.KindSessionExpired
}
