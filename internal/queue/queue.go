// Package queue is the durable at-least-once job store. It is the single
// source of truth for job state; the pipeline holds no job tables of its
// own. The Redis backend is safe for concurrent claims from multiple worker
// processes; the in-memory backend serves tests and single-process use.
package queue

import (
	"context"
	"errors"
	"math"
	"time"

	"yt-transcriber/internal/model"
)

// ErrLockLost is returned when a worker acts on a job whose execution lock
// it no longer holds (expired and reclaimed after a presumed stall).
var ErrLockLost = errors.New("job execution lock lost")

// Lease is a claimed job plus the lock token guarding its execution.
type Lease struct {
	Job   model.Job
	Token string
}

type Queue interface {
	// Enqueue stores a new waiting job and returns it.
	Enqueue(ctx context.Context, input model.JobInput) (model.Job, error)

	// Claim pops one waiting job, transitions it to active under a fresh
	// lock, and resets its progress. Returns nil when nothing is due.
	Claim(ctx context.Context) (*Lease, error)

	// RenewLock extends the lease. Workers call it on a fixed interval while
	// executing; a lapse marks the job stalled.
	RenewLock(ctx context.Context, id, token string) error

	// UpdateProgress records a checkpoint. Progress is monotonically
	// non-decreasing within an attempt; lower values are ignored.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// Complete transitions the job to its terminal completed state with the
	// result envelope attached and progress forced to 100.
	Complete(ctx context.Context, id, token string, result *model.TranscriptResult) error

	// Fail applies the retry policy: a retryable cause with attempts left
	// requeues after exponential backoff (retried=true), anything else is
	// terminal failure with the structured reason retained.
	Fail(ctx context.Context, id, token string, cause *model.Error) (retried bool, err error)

	// Job returns a job by id, or nil when unknown.
	Job(ctx context.Context, id string) (*model.Job, error)

	// Counts reports the per-state census for status and health reporting.
	Counts(ctx context.Context) (model.QueueCounts, error)

	// RequeueStalled returns jobs whose lock lapsed to waiting, failing any
	// past the stall limit. Returns how many were touched.
	RequeueStalled(ctx context.Context) (int, error)

	// Cleanup garbage-collects completed jobs past the retention window.
	// Failed jobs are retained for diagnosis.
	Cleanup(ctx context.Context) (int, error)
}

type Options struct {
	MaxAttempts        int
	BackoffBase        time.Duration
	LockDuration       time.Duration
	MaxStalls          int
	CompletedRetention time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.LockDuration <= 0 {
		o.LockDuration = 30 * time.Second
	}
	if o.MaxStalls <= 0 {
		o.MaxStalls = 2
	}
	if o.CompletedRetention <= 0 {
		o.CompletedRetention = 24 * time.Hour
	}
	return o
}

// backoffDelay is base × 2^attempts, capped to keep scores sane.
func backoffDelay(base time.Duration, attempts int) time.Duration {
	if attempts > 16 {
		attempts = 16
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempts)))
}
