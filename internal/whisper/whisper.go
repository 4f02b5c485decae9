// Package whisper invokes a local whisper.cpp-style binary and parses its
// JSON transcription output into transcript segments.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yt-transcriber/internal/model"
	"yt-transcriber/internal/subprocess"
)

type Client struct {
	inv *subprocess.Invoker

	Binary    string
	ModelPath string
	ModelName string
	Language  string
	Timeout   time.Duration
}

func NewClient(inv *subprocess.Invoker, binary, modelPath, modelName string) *Client {
	return &Client{
		inv:       inv,
		Binary:    binary,
		ModelPath: modelPath,
		ModelName: modelName,
		Language:  "en",
		Timeout:   time.Hour,
	}
}

// Source is the result-envelope source label for this model.
func (c *Client) Source() string {
	return "local-speech-model:" + c.ModelName
}

// Transcribe runs the model over audioPath and returns ordered segments.
// The JSON side file is written next to the audio inside the per-attempt
// temp directory, so cleanup removes it with everything else.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("audio path is required")
	}
	outPrefix := filepath.Join(filepath.Dir(audioPath), "transcript")
	args := []string{
		"-m", c.ModelPath,
		"-f", audioPath,
		"-l", c.Language,
		"--output-json",
		"--output-file", outPrefix,
		"--no-prints",
	}
	_, err := c.inv.Run(ctx, subprocess.Command{
		Name:    c.Binary,
		Args:    args,
		Timeout: c.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return parseOutputFile(outPrefix + ".json")
}

type outputFile struct {
	Transcription []struct {
		Offsets struct {
			FromMS int64 `json:"from"`
			ToMS   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutputFile(path string) ([]model.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcription output %s: %w", path, err)
	}
	return ParseOutput(data)
}

// ParseOutput decodes the whisper.cpp JSON shape. Empty-text entries are
// dropped; cue order is preserved.
func ParseOutput(data []byte) ([]model.Segment, error) {
	var out outputFile
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse transcription output: %w", err)
	}
	segments := make([]model.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		start := float64(t.Offsets.FromMS) / 1000.0
		dur := float64(t.Offsets.ToMS-t.Offsets.FromMS) / 1000.0
		if dur < 0 {
			dur = 0
		}
		segments = append(segments, model.Segment{
			Text:            text,
			StartSeconds:    start,
			DurationSeconds: dur,
		})
	}
	return segments, nil
}
