package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"yt-transcriber/internal/config"
	"yt-transcriber/internal/model"
	"yt-transcriber/internal/ytdlp"
)

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	forceFallback := fs.Bool("force-fallback", false, "skip native captions, go straight to the local speech model")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: submit [--force-fallback] <video-url>")
	}
	url := strings.TrimSpace(fs.Arg(0))

	// Reject malformed URLs at the door rather than burning a queue slot.
	if _, err := ytdlp.ExtractVideoID(url); err != nil {
		return err
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer func() {
			_ = closeQueue()
		}()
	}

	job, err := q.Enqueue(context.Background(), model.JobInput{
		SourceURL:         url,
		ForceFallbackTier: *forceFallback,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(job)
	}
	fmt.Printf("job enqueued: %s\n", job.ID)
	fmt.Printf("check progress with: yt-transcriber status %s\n", job.ID)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: status <job-id>")
	}
	id := strings.TrimSpace(fs.Arg(0))

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer func() {
			_ = closeQueue()
		}()
	}

	job, err := q.Job(context.Background(), id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}

	if *jsonOut {
		return printJSON(job)
	}
	fmt.Printf("job: %s\n", job.ID)
	fmt.Printf("state: %s\n", job.State)
	fmt.Printf("progress: %d%%\n", job.Progress)
	fmt.Printf("attempts: %d/%d\n", job.Attempts, job.MaxAttempts)
	if job.Result != nil {
		fmt.Printf("tier: %d (%s)\n", job.Result.Tier, job.Result.Source)
		fmt.Printf("video: %s (%s)\n", job.Result.VideoID, job.Result.Title)
		fmt.Printf("transcript: %s\n", job.Result.PlainTextURL)
		fmt.Printf("segments: %s\n", job.Result.JSONURL)
	}
	if job.Failure != nil {
		fmt.Printf("failure: %s (%s)\n", job.Failure.Message, job.Failure.Kind)
	}
	return nil
}

func runQueue(args []string) error {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer func() {
			_ = closeQueue()
		}()
	}

	counts, err := q.Counts(context.Background())
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(counts)
	}
	fmt.Printf("waiting:   %d\n", counts.Waiting)
	fmt.Printf("active:    %d\n", counts.Active)
	fmt.Printf("completed: %d\n", counts.Completed)
	fmt.Printf("failed:    %d\n", counts.Failed)
	return nil
}
