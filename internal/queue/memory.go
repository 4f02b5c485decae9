package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"yt-transcriber/internal/model"
)

type memoryLock struct {
	token    string
	deadline time.Time
}

// Memory is a process-local Queue with the same semantics as the Redis
// backend. It backs tests and single-process deployments.
type Memory struct {
	mu      sync.Mutex
	opts    Options
	jobs    map[string]*model.Job
	waiting []string
	delayed map[string]time.Time
	locks   map[string]memoryLock
	now     func() time.Time
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:    opts.withDefaults(),
		jobs:    make(map[string]*model.Job),
		delayed: make(map[string]time.Time),
		locks:   make(map[string]memoryLock),
		now:     time.Now,
	}
}

func (m *Memory) Enqueue(_ context.Context, input model.JobInput) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	job := model.Job{
		ID:          uuid.NewString(),
		Input:       input,
		State:       model.StateWaiting,
		MaxAttempts: m.opts.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.jobs[job.ID] = &job
	m.waiting = append(m.waiting, job.ID)
	out := job
	return out, nil
}

func (m *Memory) Claim(_ context.Context) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.promoteDueLocked()
	if len(m.waiting) == 0 {
		return nil, nil
	}
	id := m.waiting[0]
	m.waiting = m.waiting[1:]

	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	if err := model.TransitionJobState(job, model.StateActive); err != nil {
		return nil, err
	}
	job.Attempts++
	job.Progress = 0
	job.UpdatedAt = m.now()

	token := uuid.NewString()
	m.locks[id] = memoryLock{token: token, deadline: m.now().Add(m.opts.LockDuration)}

	out := *job
	return &Lease{Job: out, Token: token}, nil
}

func (m *Memory) RenewLock(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok || lock.token != token {
		return ErrLockLost
	}
	lock.deadline = m.now().Add(m.opts.LockDuration)
	m.locks[id] = lock
	return nil
}

func (m *Memory) UpdateProgress(_ context.Context, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || model.Terminal(job.State) {
		return nil
	}
	if progress > job.Progress {
		job.Progress = clampProgress(progress)
		job.UpdatedAt = m.now()
	}
	return nil
}

func (m *Memory) Complete(_ context.Context, id, token string, result *model.TranscriptResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[id]; !ok || lock.token != token {
		return ErrLockLost
	}
	job := m.jobs[id]
	if err := model.TransitionJobState(job, model.StateCompleted); err != nil {
		return err
	}
	job.Result = result
	job.Failure = nil
	job.Progress = 100
	job.FinishedAt = m.now()
	job.UpdatedAt = job.FinishedAt
	delete(m.locks, id)
	return nil
}

func (m *Memory) Fail(_ context.Context, id, token string, cause *model.Error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[id]; !ok || lock.token != token {
		return false, ErrLockLost
	}
	job := m.jobs[id]
	delete(m.locks, id)

	if cause.Retryable() && job.Attempts < job.MaxAttempts {
		if err := model.TransitionJobState(job, model.StateWaiting); err != nil {
			return false, err
		}
		m.delayed[id] = m.now().Add(backoffDelay(m.opts.BackoffBase, job.Attempts))
		job.UpdatedAt = m.now()
		return true, nil
	}

	if err := model.TransitionJobState(job, model.StateFailed); err != nil {
		return false, err
	}
	job.Failure = &model.FailureReason{
		Kind:        cause.Kind,
		Message:     cause.Message,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
	}
	job.FinishedAt = m.now()
	job.UpdatedAt = job.FinishedAt
	return false, nil
}

func (m *Memory) Job(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (m *Memory) Counts(_ context.Context) (model.QueueCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts model.QueueCounts
	for _, job := range m.jobs {
		switch job.State {
		case model.StateWaiting:
			counts.Waiting++
		case model.StateActive:
			counts.Active++
		case model.StateCompleted:
			counts.Completed++
		case model.StateFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (m *Memory) RequeueStalled(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := 0
	now := m.now()
	for id, job := range m.jobs {
		if job.State != model.StateActive {
			continue
		}
		lock, ok := m.locks[id]
		if ok && lock.deadline.After(now) {
			continue
		}
		delete(m.locks, id)
		job.Stalls++
		touched++
		if job.Stalls > m.opts.MaxStalls {
			if err := model.TransitionJobState(job, model.StateFailed); err != nil {
				return touched, err
			}
			job.Failure = &model.FailureReason{
				Kind:        model.KindOther,
				Message:     "job stalled too many times; presumed crashed worker",
				Attempts:    job.Attempts,
				MaxAttempts: job.MaxAttempts,
			}
			job.FinishedAt = now
		} else {
			if err := model.TransitionJobState(job, model.StateWaiting); err != nil {
				return touched, err
			}
			m.waiting = append(m.waiting, id)
		}
		job.UpdatedAt = now
	}
	return touched, nil
}

func (m *Memory) Cleanup(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := m.now().Add(-m.opts.CompletedRetention)
	for id, job := range m.jobs {
		if job.State == model.StateCompleted && job.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) promoteDueLocked() {
	now := m.now()
	for id, due := range m.delayed {
		if !due.After(now) {
			delete(m.delayed, id)
			m.waiting = append(m.waiting, id)
		}
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
