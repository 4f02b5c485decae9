// Package ytdlp builds yt-dlp invocations for the transcription pipeline:
// a metadata probe, caption extraction, and audio-only download.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yt-transcriber/internal/subprocess"
)

const binary = "yt-dlp"

type Client struct {
	inv *subprocess.Invoker

	MetadataTimeout time.Duration
	CaptionTimeout  time.Duration
	AudioTimeout    time.Duration
}

func NewClient(inv *subprocess.Invoker) *Client {
	return &Client{
		inv:             inv,
		MetadataTimeout: 30 * time.Second,
		CaptionTimeout:  30 * time.Second,
		AudioTimeout:    10 * time.Minute,
	}
}

type Metadata struct {
	VideoID         string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	Uploader        string  `json:"uploader"`
	DurationSeconds float64 `json:"duration"`
	WebpageURL      string  `json:"webpage_url"`
}

// FetchMetadata probes the video without downloading anything.
func (c *Client) FetchMetadata(ctx context.Context, videoURL string) (Metadata, error) {
	if strings.TrimSpace(videoURL) == "" {
		return Metadata{}, fmt.Errorf("video URL is required")
	}
	args := []string{"--no-playlist", "--skip-download", "-J", videoURL}
	res, err := c.inv.Run(ctx, subprocess.Command{
		Name:        binary,
		Args:        args,
		Timeout:     c.MetadataTimeout,
		WithCookies: true,
	})
	if err != nil {
		return Metadata{}, err
	}
	if len(res.Stdout) == 0 {
		return Metadata{}, fmt.Errorf("yt-dlp returned empty metadata")
	}
	var meta Metadata
	if err := json.Unmarshal(res.Stdout, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	if meta.Channel == "" {
		meta.Channel = meta.Uploader
	}
	return meta, nil
}

// DownloadCaptions writes native caption tracks as .vtt files under
// outputDir. An empty directory afterwards means the video has no captions;
// that is not an error.
func (c *Client) DownloadCaptions(ctx context.Context, videoURL, outputDir, subLangs string) error {
	if strings.TrimSpace(outputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	langs := normalizeSubLangs(subLangs)
	args := []string{
		"--no-playlist",
		"--skip-download",
		"--restrict-filenames",
		"-P", outputDir,
		"-o", "%(id)s.%(ext)s",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", langs,
		"--convert-subs", "vtt",
		videoURL,
	}
	_, err := c.inv.Run(ctx, subprocess.Command{
		Name:        binary,
		Args:        args,
		Timeout:     c.CaptionTimeout,
		WithCookies: true,
	})
	return err
}

// DownloadAudio extracts the audio track into outputDir and returns the path
// to the downloaded file.
func (c *Client) DownloadAudio(ctx context.Context, videoURL, outputDir string) (string, error) {
	if strings.TrimSpace(outputDir) == "" {
		return "", fmt.Errorf("output directory is required")
	}
	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"-P", outputDir,
		"-o", "audio.%(ext)s",
		"-x",
		"--audio-format", "wav",
		"--audio-quality", "0",
		videoURL,
	}
	_, err := c.inv.Run(ctx, subprocess.Command{
		Name:        binary,
		Args:        args,
		Timeout:     c.AudioTimeout,
		WithCookies: true,
	})
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "audio.wav")
	if _, statErr := os.Stat(path); statErr != nil {
		return "", fmt.Errorf("yt-dlp reported success but %s is missing: %w", path, statErr)
	}
	return path, nil
}

func normalizeSubLangs(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "english", "en":
		return "en.*,en,-live_chat"
	case "all":
		return "all,-live_chat"
	default:
		return raw
	}
}

// DependencyReport lists the external tools the pipeline shells out to.
type DependencyReport struct {
	YTDLPFound   bool   `json:"yt_dlp_found"`
	YTDLPPath    string `json:"yt_dlp_path,omitempty"`
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	WhisperFound bool   `json:"whisper_found"`
	WhisperPath  string `json:"whisper_path,omitempty"`
}

func DependencyStatus(whisperBinary string) DependencyReport {
	report := DependencyReport{}
	if path, ok := subprocess.LookPath(binary); ok {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, ok := subprocess.LookPath("ffmpeg"); ok {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	if path, ok := subprocess.LookPath(whisperBinary); ok {
		report.WhisperFound = true
		report.WhisperPath = path
	}
	return report
}

func CheckDependencies(whisperBinary string) error {
	report := DependencyStatus(whisperBinary)
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required for audio extraction and was not found on PATH")
	}
	if !report.WhisperFound {
		return fmt.Errorf("missing dependency: %s (local speech model runner) was not found on PATH", whisperBinary)
	}
	return nil
}
