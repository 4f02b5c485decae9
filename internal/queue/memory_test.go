package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-transcriber/internal/model"
)

func newTestMemory(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Options{})
	m.now = func() time.Time { return clock }
	return m, &clock
}

func mustEnqueue(t *testing.T, m *Memory) model.Job {
	t.Helper()
	job, err := m.Enqueue(context.Background(), model.JobInput{SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	require.NoError(t, err)
	require.Equal(t, model.StateWaiting, job.State)
	return job
}

func TestMemory_EnqueueClaimComplete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	job := mustEnqueue(t, m)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, job.ID, lease.Job.ID)
	assert.Equal(t, model.StateActive, lease.Job.State)
	assert.Equal(t, 1, lease.Job.Attempts)
	assert.NotEmpty(t, lease.Token)

	result := &model.TranscriptResult{VideoID: "dQw4w9WgXcQ", Tier: 1}
	require.NoError(t, m.Complete(ctx, job.ID, lease.Token, result))

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, "dQw4w9WgXcQ", got.Result.VideoID)
	assert.Nil(t, got.Failure)
}

func TestMemory_ClaimEmpty(t *testing.T) {
	m, _ := newTestMemory(t)
	lease, err := m.Claim(context.Background())
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestMemory_CompleteWithWrongToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	job := mustEnqueue(t, m)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)

	err = m.Complete(ctx, job.ID, "stale-token", nil)
	assert.ErrorIs(t, err, ErrLockLost)

	_, err = m.Fail(ctx, job.ID, "stale-token", model.NewError(model.KindOther, "boom"))
	assert.ErrorIs(t, err, ErrLockLost)

	require.NoError(t, m.Complete(ctx, job.ID, lease.Token, nil))
}

func TestMemory_RetryableFailureRequeuesWithBackoff(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t)
	job := mustEnqueue(t, m)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)

	retried, err := m.Fail(ctx, job.ID, lease.Token, model.NewError(model.KindOther, "transient"))
	require.NoError(t, err)
	assert.True(t, retried)

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateWaiting, got.State)
	assert.Nil(t, got.Failure)

	// Not claimable before the backoff delay elapses.
	lease, err = m.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, lease)

	*clock = clock.Add(backoffDelay(m.opts.BackoffBase, 1) + time.Millisecond)
	lease, err = m.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, 2, lease.Job.Attempts)
}

func TestMemory_FatalFailureSkipsRetry(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	job := mustEnqueue(t, m)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)

	retried, err := m.Fail(ctx, job.ID, lease.Token, model.NewError(model.KindPlatformBlocked, "bot check"))
	require.NoError(t, err)
	assert.False(t, retried)

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	require.NotNil(t, got.Failure)
	assert.Equal(t, model.KindPlatformBlocked, got.Failure.Kind)
	assert.Equal(t, 1, got.Failure.Attempts)
}

func TestMemory_RetriesExhaustAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t)
	job := mustEnqueue(t, m)

	transient := model.NewError(model.KindOther, "flaky network")
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		lease, err := m.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, lease, "attempt %d should be claimable", attempt)
		assert.Equal(t, attempt, lease.Job.Attempts)

		retried, err := m.Fail(ctx, job.ID, lease.Token, transient)
		require.NoError(t, err)
		assert.Equal(t, attempt < m.opts.MaxAttempts, retried)

		*clock = clock.Add(backoffDelay(m.opts.BackoffBase, attempt) + time.Millisecond)
	}

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	require.NotNil(t, got.Failure)
	assert.Equal(t, m.opts.MaxAttempts, got.Failure.Attempts)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestMemory_UpdateProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	job := mustEnqueue(t, m)
	_, err := m.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, m.UpdateProgress(ctx, job.ID, 40))
	require.NoError(t, m.UpdateProgress(ctx, job.ID, 10))
	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)

	require.NoError(t, m.UpdateProgress(ctx, job.ID, 250))
	got, err = m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestMemory_RenewLock(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	job := mustEnqueue(t, m)
	lease, err := m.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, m.RenewLock(ctx, job.ID, lease.Token))
	assert.ErrorIs(t, m.RenewLock(ctx, job.ID, "stale-token"), ErrLockLost)
	assert.ErrorIs(t, m.RenewLock(ctx, "no-such-job", lease.Token), ErrLockLost)
}

func TestMemory_RequeueStalled(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t)
	job := mustEnqueue(t, m)
	lease, err := m.Claim(ctx)
	require.NoError(t, err)

	// Lock still live, nothing to do.
	touched, err := m.RequeueStalled(ctx)
	require.NoError(t, err)
	assert.Zero(t, touched)

	*clock = clock.Add(m.opts.LockDuration + time.Second)
	touched, err = m.RequeueStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateWaiting, got.State)
	assert.Equal(t, 1, got.Stalls)

	// The old lease is dead after the requeue.
	assert.ErrorIs(t, m.RenewLock(ctx, job.ID, lease.Token), ErrLockLost)
}

func TestMemory_StallLimitFailsJob(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t)
	job := mustEnqueue(t, m)

	for i := 0; i <= m.opts.MaxStalls; i++ {
		lease, err := m.Claim(ctx)
		require.NoError(t, err)
		require.NotNil(t, lease)
		*clock = clock.Add(m.opts.LockDuration + time.Second)
		_, err = m.RequeueStalled(ctx)
		require.NoError(t, err)
	}

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	assert.Equal(t, m.opts.MaxStalls+1, got.Stalls)
	require.NotNil(t, got.Failure)
	assert.Equal(t, model.KindOther, got.Failure.Kind)
}

func TestMemory_Counts(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t)
	a := mustEnqueue(t, m)
	mustEnqueue(t, m)

	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, a.ID, lease.Job.ID)

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCounts{Waiting: 1, Active: 1}, counts)

	require.NoError(t, m.Complete(ctx, a.ID, lease.Token, nil))
	counts, err = m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCounts{Waiting: 1, Completed: 1}, counts)
}

func TestMemory_CleanupDropsOldCompleted(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t)
	job := mustEnqueue(t, m)
	lease, err := m.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, job.ID, lease.Token, nil))

	removed, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	*clock = clock.Add(m.opts.CompletedRetention + time.Hour)
	removed, err = m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, backoffDelay(base, 0))
	assert.Equal(t, 4*time.Second, backoffDelay(base, 1))
	assert.Equal(t, 8*time.Second, backoffDelay(base, 2))
	// Exponent is capped so the delay never overflows.
	assert.Equal(t, backoffDelay(base, 16), backoffDelay(base, 400))
}
