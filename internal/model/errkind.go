package model

import (
	"errors"
	"fmt"
)

// Kind is the closed failure taxonomy. Retryability is a property of the
// kind except where the executor overrides it per tier (see pipeline).
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindPlatformBlocked     Kind = "platform_blocked"
	KindSessionExpired      Kind = "session_expired"
	KindTimeout             Kind = "timeout"
	KindOutputTooLarge      Kind = "output_too_large"
	KindMetadataUnavailable Kind = "metadata_unavailable"
	KindStorageWriteFailed  Kind = "storage_write_failed"
	KindOther               Kind = "other"
)

// Retryable reports the queue-level default for the kind. Unknown failures
// retry by default to bias toward resilience over false negatives.
func (k Kind) Retryable() bool {
	switch k {
	case KindInvalidInput, KindOutputTooLarge, KindPlatformBlocked, KindSessionExpired:
		return false
	default:
		return true
	}
}

// Error is the typed failure propagated through the pipeline. The executor
// may override the kind's default retryability for stage-dependent policy
// (a platform block during metadata is retryable; the same block during the
// tier-2 audio download is not).
type Error struct {
	Kind    Kind
	Message string

	retryableOverride *bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the queue may retry this failure.
func (e *Error) Retryable() bool {
	if e.retryableOverride != nil {
		return *e.retryableOverride
	}
	return e.Kind.Retryable()
}

// WithRetryable returns a copy with an explicit retry decision.
func (e *Error) WithRetryable(v bool) *Error {
	out := *e
	out.retryableOverride = &v
	return &out
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError coerces any error into the taxonomy, defaulting to KindOther.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOther, Message: err.Error()}
}
