package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"yt-transcriber/internal/model"
)

const connectTimeout = 5 * time.Second

// Redis key layout under one prefix:
//
//	<p>:job:<id>    job record JSON
//	<p>:waiting     list of ready job ids (RPOP side is the head)
//	<p>:delayed     zset id -> ready-at unix ms (retry backoff)
//	<p>:active      list of claimed job ids
//	<p>:lock:<id>   lock token with PX = lock duration
//	<p>:completed   zset id -> finished-at unix ms (retention GC)
//	<p>:failed      zset id -> finished-at unix ms (kept for diagnosis)
type Redis struct {
	rdb    *redis.Client
	opts   Options
	prefix string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

func NewRedis(cfg RedisConfig, opts Options) (*Redis, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ytt"
	}
	return &Redis{rdb: client, opts: opts.withDefaults(), prefix: prefix}, nil
}

// NewRedisWithClient wraps an existing client, for tests.
func NewRedisWithClient(client *redis.Client, prefix string, opts Options) *Redis {
	if prefix == "" {
		prefix = "ytt"
	}
	return &Redis{rdb: client, opts: opts.withDefaults(), prefix: prefix}
}

func (q *Redis) Close() error { return q.rdb.Close() }

func (q *Redis) key(parts ...string) string {
	k := q.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (q *Redis) jobKey(id string) string  { return q.key("job", id) }
func (q *Redis) lockKey(id string) string { return q.key("lock", id) }

func (q *Redis) loadJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Redis) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := q.rdb.Set(ctx, q.jobKey(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (q *Redis) Enqueue(ctx context.Context, input model.JobInput) (model.Job, error) {
	now := time.Now().UTC()
	job := model.Job{
		ID:          uuid.NewString(),
		Input:       input,
		State:       model.StateWaiting,
		MaxAttempts: q.opts.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.saveJob(ctx, &job); err != nil {
		return model.Job{}, err
	}
	if err := q.rdb.LPush(ctx, q.key("waiting"), job.ID).Err(); err != nil {
		return model.Job{}, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return job, nil
}

func (q *Redis) Claim(ctx context.Context) (*Lease, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	// LMOVE is the atomic claim: only one worker ever receives a given id.
	id, err := q.rdb.LMove(ctx, q.key("waiting"), q.key("active"), "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	job, err := q.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Record was GC'd under the id; drop the orphan.
		_ = q.rdb.LRem(ctx, q.key("active"), 0, id).Err()
		return nil, nil
	}
	if err := model.TransitionJobState(job, model.StateActive); err != nil {
		return nil, err
	}
	job.Attempts++
	job.Progress = 0
	job.UpdatedAt = time.Now().UTC()
	if err := q.saveJob(ctx, job); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if err := q.rdb.Set(ctx, q.lockKey(id), token, q.opts.LockDuration).Err(); err != nil {
		return nil, fmt.Errorf("lock job %s: %w", id, err)
	}
	return &Lease{Job: *job, Token: token}, nil
}

func (q *Redis) RenewLock(ctx context.Context, id, token string) error {
	current, err := q.rdb.Get(ctx, q.lockKey(id)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && current != token) {
		return ErrLockLost
	}
	if err != nil {
		return fmt.Errorf("renew lock for %s: %w", id, err)
	}
	if err := q.rdb.PExpire(ctx, q.lockKey(id), q.opts.LockDuration).Err(); err != nil {
		return fmt.Errorf("renew lock for %s: %w", id, err)
	}
	return nil
}

func (q *Redis) holdsLock(ctx context.Context, id, token string) (bool, error) {
	current, err := q.rdb.Get(ctx, q.lockKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lock for %s: %w", id, err)
	}
	return current == token, nil
}

func (q *Redis) UpdateProgress(ctx context.Context, id string, progress int) error {
	job, err := q.loadJob(ctx, id)
	if err != nil || job == nil {
		return err
	}
	if model.Terminal(job.State) || progress <= job.Progress {
		return nil
	}
	job.Progress = clampProgress(progress)
	job.UpdatedAt = time.Now().UTC()
	return q.saveJob(ctx, job)
}

func (q *Redis) Complete(ctx context.Context, id, token string, result *model.TranscriptResult) error {
	held, err := q.holdsLock(ctx, id, token)
	if err != nil {
		return err
	}
	if !held {
		return ErrLockLost
	}
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("complete: job %s not found", id)
	}
	if err := model.TransitionJobState(job, model.StateCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	job.Result = result
	job.Failure = nil
	job.Progress = 100
	job.FinishedAt = now
	job.UpdatedAt = now
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	return q.release(ctx, id, "completed", now)
}

func (q *Redis) Fail(ctx context.Context, id, token string, cause *model.Error) (bool, error) {
	held, err := q.holdsLock(ctx, id, token)
	if err != nil {
		return false, err
	}
	if !held {
		return false, ErrLockLost
	}
	job, err := q.loadJob(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, fmt.Errorf("fail: job %s not found", id)
	}
	now := time.Now().UTC()

	if cause.Retryable() && job.Attempts < job.MaxAttempts {
		if err := model.TransitionJobState(job, model.StateWaiting); err != nil {
			return false, err
		}
		job.UpdatedAt = now
		if err := q.saveJob(ctx, job); err != nil {
			return false, err
		}
		readyAt := now.Add(backoffDelay(q.opts.BackoffBase, job.Attempts))
		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.key("active"), 0, id)
		pipe.Del(ctx, q.lockKey(id))
		pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("requeue job %s: %w", id, err)
		}
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
	job.FinishedAt = now
	job.UpdatedAt = now
	if err := q.saveJob(ctx, job); err != nil {
		return false, err
	}
	return false, q.release(ctx, id, "failed", now)
}

// release drops the job off the active list and lock and records it in the
// terminal zset.
func (q *Redis) release(ctx context.Context, id, terminalSet string, at time.Time) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key("active"), 0, id)
	pipe.Del(ctx, q.lockKey(id))
	pipe.ZAdd(ctx, q.key(terminalSet), redis.Z{Score: float64(at.UnixMilli()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release job %s: %w", id, err)
	}
	return nil
}

func (q *Redis) Job(ctx context.Context, id string) (*model.Job, error) {
	return q.loadJob(ctx, id)
}

func (q *Redis) Counts(ctx context.Context) (model.QueueCounts, error) {
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, q.key("waiting"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	active := pipe.LLen(ctx, q.key("active"))
	completed := pipe.ZCard(ctx, q.key("completed"))
	failed := pipe.ZCard(ctx, q.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return model.QueueCounts{}, fmt.Errorf("queue counts: %w", err)
	}
	return model.QueueCounts{
		Waiting:   int(waiting.Val() + delayed.Val()),
		Active:    int(active.Val()),
		Completed: int(completed.Val()),
		Failed:    int(failed.Val()),
	}, nil
}

// promoteDue moves delayed jobs whose backoff elapsed onto the waiting list.
// ZRem is the winner guard when several workers promote concurrently.
func (q *Redis) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("promote delayed jobs: %w", err)
	}
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.key("delayed"), id).Result()
		if err != nil {
			return fmt.Errorf("promote delayed job %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key("waiting"), id).Err(); err != nil {
			return fmt.Errorf("promote delayed job %s: %w", id, err)
		}
	}
	return nil
}

func (q *Redis) RequeueStalled(ctx context.Context) (int, error) {
	ids, err := q.rdb.LRange(ctx, q.key("active"), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("scan active jobs: %w", err)
	}

	touched := 0
	now := time.Now().UTC()
	for _, id := range ids {
		exists, err := q.rdb.Exists(ctx, q.lockKey(id)).Result()
		if err != nil {
			return touched, fmt.Errorf("check lock for %s: %w", id, err)
		}
		if exists > 0 {
			continue
		}
		// LRem is the winner guard: exactly one instance requeues the job.
		removed, err := q.rdb.LRem(ctx, q.key("active"), 0, id).Result()
		if err != nil {
			return touched, fmt.Errorf("requeue stalled job %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		job, err := q.loadJob(ctx, id)
		if err != nil {
			return touched, err
		}
		if job == nil || job.State != model.StateActive {
			continue
		}
		job.Stalls++
		touched++
		if job.Stalls > q.opts.MaxStalls {
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
			job.UpdatedAt = now
			if err := q.saveJob(ctx, job); err != nil {
				return touched, err
			}
			if err := q.rdb.ZAdd(ctx, q.key("failed"), redis.Z{Score: float64(now.UnixMilli()), Member: id}).Err(); err != nil {
				return touched, fmt.Errorf("record stalled job %s: %w", id, err)
			}
			continue
		}
		if err := model.TransitionJobState(job, model.StateWaiting); err != nil {
			return touched, err
		}
		job.UpdatedAt = now
		if err := q.saveJob(ctx, job); err != nil {
			return touched, err
		}
		if err := q.rdb.LPush(ctx, q.key("waiting"), id).Err(); err != nil {
			return touched, fmt.Errorf("requeue stalled job %s: %w", id, err)
		}
	}
	return touched, nil
}

func (q *Redis) Cleanup(ctx context.Context) (int, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-q.opts.CompletedRetention).UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("completed"), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan completed jobs: %w", err)
	}
	removed := 0
	for _, id := range ids {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, q.key("completed"), id)
		pipe.Del(ctx, q.jobKey(id))
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("clean up job %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}
