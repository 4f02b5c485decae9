package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"yt-transcriber/internal/artifacts"
	"yt-transcriber/internal/config"
	"yt-transcriber/internal/cookies"
	"yt-transcriber/internal/logging"
	"yt-transcriber/internal/pipeline"
	"yt-transcriber/internal/queue"
	"yt-transcriber/internal/storage"
	"yt-transcriber/internal/subprocess"
	"yt-transcriber/internal/whisper"
	"yt-transcriber/internal/worker"
	"yt-transcriber/internal/ytdlp"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func queueOptions(cfg config.QueueConfig) queue.Options {
	return queue.Options{
		MaxAttempts:        cfg.MaxAttempts,
		BackoffBase:        cfg.BackoffBase,
		LockDuration:       cfg.LockDuration,
		MaxStalls:          cfg.MaxStalls,
		CompletedRetention: cfg.CompletedRetention,
	}
}

// openQueue builds the configured queue backend. The returned closer is nil
// for backends with nothing to close.
func openQueue(cfg config.Config) (queue.Queue, func() error, error) {
	switch cfg.Queue.Backend {
	case "memory":
		return queue.NewMemory(queueOptions(cfg.Queue)), nil, nil
	case "redis":
		q, err := queue.NewRedis(queue.RedisConfig{
			Address:  cfg.Queue.RedisAddress,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
			Prefix:   cfg.Queue.Prefix,
		}, queueOptions(cfg.Queue))
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "fs":
		return storage.NewFSStore(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildExecutor(cfg config.Config, store storage.BlobStore, log *zap.Logger) *pipeline.Executor {
	jar := cookies.NewStore(cfg.Cookies.Path)
	inv := subprocess.NewInvoker(jar)

	yt := ytdlp.NewClient(inv)
	yt.MetadataTimeout = cfg.Tools.MetadataTimeout
	yt.CaptionTimeout = cfg.Tools.CaptionTimeout
	yt.AudioTimeout = cfg.Tools.AudioTimeout

	speech := whisper.NewClient(inv, cfg.Tools.WhisperBinary, cfg.Tools.WhisperModelPath, cfg.Tools.WhisperModelName)
	speech.Language = cfg.Tools.WhisperLanguage
	speech.Timeout = cfg.Tools.TranscribeTimeout

	sink := artifacts.NewMaterializer(store)

	return pipeline.NewExecutor(yt, yt, yt, speech, sink, nil, pipeline.Options{
		CaptionsEnabled: cfg.Tools.CaptionsEnabled,
		SubLang:         cfg.Tools.SubLang,
		WorkDir:         cfg.WorkDir,
	}, log)
}

func workerOptions(cfg config.QueueConfig) worker.Options {
	return worker.Options{
		Concurrency:   cfg.Concurrency,
		PollInterval:  cfg.PollInterval,
		RenewInterval: cfg.RenewInterval,
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Development)
}
