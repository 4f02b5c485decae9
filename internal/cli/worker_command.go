package cli

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"yt-transcriber/internal/config"
	"yt-transcriber/internal/worker"
	"yt-transcriber/internal/ytdlp"
)

func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	concurrency := fs.Int("concurrency", 0, "override queue.concurrency")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	if *concurrency > 0 {
		cfg.Queue.Concurrency = *concurrency
	}

	if err := ytdlp.CheckDependencies(cfg.Tools.WhisperBinary); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer func() {
			_ = closeQueue()
		}()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	exec := buildExecutor(cfg, store, log)
	pool := worker.NewPool(q, exec, workerOptions(cfg.Queue), log)

	log.Info("worker pool starting",
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.String("storage_backend", cfg.Storage.Backend))
	pool.Run(ctx)
	log.Info("worker pool stopped")
	fmt.Println("worker stopped")
	return nil
}
