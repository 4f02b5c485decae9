// Package worker runs the bounded pool that pulls jobs from the durable
// queue and drives them through the tiered executor. Each worker executes at
// most one job at a time; a job's failure never brings the pool down.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"yt-transcriber/internal/model"
	"yt-transcriber/internal/queue"
)

type Executor interface {
	Execute(ctx context.Context, job model.Job, report func(int)) (*model.TranscriptResult, *model.Error)
}

type Options struct {
	Concurrency     int
	PollInterval    time.Duration
	RenewInterval   time.Duration
	JanitorInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.RenewInterval <= 0 {
		o.RenewInterval = 15 * time.Second
	}
	if o.JanitorInterval <= 0 {
		o.JanitorInterval = 15 * time.Second
	}
	return o
}

type Pool struct {
	queue queue.Queue
	exec  Executor
	opts  Options
	log   *zap.Logger
}

func NewPool(q queue.Queue, exec Executor, opts Options, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{queue: q, exec: exec, opts: opts.withDefaults(), log: log}
}

// Run blocks until ctx is cancelled, then drains: workers finish the job
// they hold before returning.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 1; i <= p.opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.workerLoop(ctx, workerID)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.janitorLoop(ctx)
	}()
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, workerID int) {
	log := p.log.With(zap.Int("worker", workerID))
	log.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		default:
		}

		lease, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("claim failed", zap.Error(err))
			}
			sleepCtx(ctx, p.opts.PollInterval)
			continue
		}
		if lease == nil {
			sleepCtx(ctx, p.opts.PollInterval)
			continue
		}
		p.process(ctx, log, lease)
	}
}

// process executes one claimed job under a renewed lock. The job context is
// cancelled if the lock is ever lost, so a reclaimed job stops doing work.
func (p *Pool) process(ctx context.Context, log *zap.Logger, lease *queue.Lease) {
	job := lease.Job
	log = log.With(zap.String("job_id", job.ID), zap.Int("attempt", job.Attempts))
	log.Info("job started", zap.String("url", job.Input.SourceURL))

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var renewWG sync.WaitGroup
	renewWG.Add(1)
	go func() {
		defer renewWG.Done()
		t := time.NewTicker(p.opts.RenewInterval)
		defer t.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := p.queue.RenewLock(jobCtx, job.ID, lease.Token); err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Warn("lock renewal failed, abandoning job", zap.Error(err))
					}
					cancel()
					return
				}
			}
		}
	}()

	report := func(progress int) {
		if err := p.queue.UpdateProgress(jobCtx, job.ID, progress); err != nil {
			log.Warn("progress update failed", zap.Int("progress", progress), zap.Error(err))
		}
	}

	result, execErr := p.exec.Execute(jobCtx, job, report)
	cancel()
	renewWG.Wait()

	// Shutdown cancels ctx while the job is in flight; the terminal
	// transition must still land or the outcome is lost and the job re-runs
	// as stalled.
	doneCtx := context.WithoutCancel(ctx)

	if execErr == nil {
		if err := p.queue.Complete(doneCtx, job.ID, lease.Token, result); err != nil {
			// A lost lock here means a stalled-duplicate raced us; its
			// last-writer-wins upload already holds an identical artifact.
			log.Warn("complete failed", zap.Error(err))
			return
		}
		log.Info("job completed", zap.Int("tier", result.Tier), zap.String("source", result.Source))
		return
	}

	retried, err := p.queue.Fail(doneCtx, job.ID, lease.Token, execErr)
	if err != nil {
		log.Warn("fail transition failed", zap.Error(err))
		return
	}
	if retried {
		log.Warn("job attempt failed, requeued",
			zap.String("kind", string(execErr.Kind)),
			zap.String("error", execErr.Message))
	} else {
		log.Error("job failed",
			zap.String("kind", string(execErr.Kind)),
			zap.String("error", execErr.Message))
	}
}

// janitorLoop requeues stalled jobs and garbage-collects expired completed
// records.
func (p *Pool) janitorLoop(ctx context.Context) {
	t := time.NewTicker(p.opts.JanitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := p.queue.RequeueStalled(ctx); err != nil {
				if ctx.Err() == nil {
					p.log.Error("stalled-job sweep failed", zap.Error(err))
				}
			} else if n > 0 {
				p.log.Warn("requeued stalled jobs", zap.Int("count", n))
			}
			if n, err := p.queue.Cleanup(ctx); err != nil {
				if ctx.Err() == nil {
					p.log.Error("completed-job cleanup failed", zap.Error(err))
				}
			} else if n > 0 {
				p.log.Info("cleaned up completed jobs", zap.Int("count", n))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
