package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"yt-transcriber/internal/config"
	"yt-transcriber/internal/cookies"
	"yt-transcriber/internal/ytdlp"
)

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
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

	res := doctorResult{OK: true}
	add := func(name string, ok bool, message string) {
		res.Checks = append(res.Checks, doctorCheck{Name: name, OK: ok, Message: message})
		if !ok {
			res.OK = false
		}
	}

	report := ytdlp.DependencyStatus(cfg.Tools.WhisperBinary)
	add("yt-dlp", report.YTDLPFound, pathOrMissing(report.YTDLPPath))
	add("ffmpeg", report.FFmpegFound, pathOrMissing(report.FFmpegPath))
	add(cfg.Tools.WhisperBinary, report.WhisperFound, pathOrMissing(report.WhisperPath))

	snap := cookies.NewStore(cfg.Cookies.Path).Snapshot()
	// Missing cookies only degrade tier 1, so the check passes with a note.
	cookieOK := snap.Status != cookies.StatusError
	add("cookies", cookieOK, cookieMessage(snap))

	ctx := context.Background()
	if q, closeQueue, qerr := openQueue(cfg); qerr != nil {
		add("queue", false, qerr.Error())
	} else {
		if _, cerr := q.Counts(ctx); cerr != nil {
			add("queue", false, cerr.Error())
		} else {
			add("queue", true, fmt.Sprintf("%s backend reachable", cfg.Queue.Backend))
		}
		if closeQueue != nil {
			_ = closeQueue()
		}
	}

	if _, serr := openStore(ctx, cfg); serr != nil {
		add("storage", false, serr.Error())
	} else {
		add("storage", true, fmt.Sprintf("%s backend configured", cfg.Storage.Backend))
	}

	if *jsonOut {
		return printJSON(res)
	}
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%-12s %-4s %s\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return fmt.Errorf("doctor checks failed")
	}
	return nil
}

func pathOrMissing(path string) string {
	if path == "" {
		return "not found on PATH"
	}
	return path
}

func cookieMessage(snap cookies.Snapshot) string {
	switch snap.Status {
	case cookies.StatusMissing:
		return "no cookie jar configured; tier 1 may be rate-limited"
	case cookies.StatusError:
		return "cookie jar unreadable"
	default:
		age := 0.0
		if snap.AgeHours != nil {
			age = *snap.AgeHours
		}
		return fmt.Sprintf("%s (%d entries, %.1fh old)", snap.Status, snap.EntryCount, age)
	}
}
