// Package captions selects and parses WebVTT caption tracks written by
// yt-dlp into ordered transcript segments.
package captions

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"yt-transcriber/internal/model"
)

var (
	timingRe = regexp.MustCompile(`(\d{1,2}:)?\d{2}:\d{2}\.\d{3}\s+-->\s+((\d{1,2}:)?\d{2}:\d{2}\.\d{3})`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
)

// PickTrack chooses one .vtt file under dir for the requested language:
// exact language first, then regional variants, then whatever remains
// (auto-generated tracks land here). Empty result means no captions, which
// the executor treats as tier fallthrough, not an error.
func PickTrack(dir, lang string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read captions directory %s: %w", dir, err)
	}

	var tracks []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".vtt") {
			tracks = append(tracks, e.Name())
		}
	}
	if len(tracks) == 0 {
		return "", nil
	}
	sort.Strings(tracks)

	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	exact := "." + lang + ".vtt"
	variant := "." + lang + "-"
	for _, name := range tracks {
		if strings.HasSuffix(strings.ToLower(name), exact) {
			return filepath.Join(dir, name), nil
		}
	}
	for _, name := range tracks {
		if strings.Contains(strings.ToLower(name), variant) {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, tracks[0]), nil
}

// ParseFile reads a WebVTT file into segments, in cue order.
func ParseFile(path string) ([]model.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open captions file %s: %w", path, err)
	}
	defer f.Close()

	var segments []model.Segment
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		inCue     bool
		start     float64
		end       float64
		textLines []string
		lastText  string
	)
	flush := func() {
		if !inCue {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, " "))
		// Auto-generated tracks repeat the previous line in rolling cues.
		if text != "" && text != lastText {
			segments = append(segments, model.Segment{
				Text:            text,
				StartSeconds:    start,
				DurationSeconds: maxFloat(end-start, 0),
			})
			lastText = text
		}
		inCue = false
		textLines = textLines[:0]
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case timingRe.MatchString(line):
			flush()
			s, e, terr := parseTiming(line)
			if terr != nil {
				continue
			}
			inCue = true
			start, end = s, e
		case inCue:
			clean := strings.TrimSpace(tagRe.ReplaceAllString(line, ""))
			if clean != "" {
				textLines = append(textLines, clean)
			}
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions file %s: %w", path, err)
	}
	return segments, nil
}

func parseTiming(line string) (start, end float64, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cue timing %q", line)
	}
	start, err = parseTimestamp(strings.Fields(parts[0])[0])
	if err != nil {
		return 0, 0, err
	}
	endFields := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("malformed cue timing %q", line)
	}
	end, err = parseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts hh:mm:ss.mmm and mm:ss.mmm.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed timestamp %q", ts)
		}
		total = total*60 + v
	}
	return total, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
