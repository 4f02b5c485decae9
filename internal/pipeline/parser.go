package pipeline

import (
	"yt-transcriber/internal/captions"
	"yt-transcriber/internal/model"
)

// vttParser is the default CaptionParser over yt-dlp's .vtt output.
type vttParser struct{}

func (vttParser) Segments(dir, lang string) ([]model.Segment, error) {
	track, err := captions.PickTrack(dir, lang)
	if err != nil {
		return nil, err
	}
	if track == "" {
		return nil, nil
	}
	return captions.ParseFile(track)
}
