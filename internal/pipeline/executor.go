// Package pipeline drives one job attempt through the tiered transcription
// state machine: metadata probe, native-caption extraction (tier 1), and
// local speech-to-text fallback (tier 2).
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"yt-transcriber/internal/artifacts"
	"yt-transcriber/internal/classify"
	"yt-transcriber/internal/model"
	"yt-transcriber/internal/ytdlp"
)

const (
	confidenceNativeCaptions = 0.98
	confidenceSpeechModel    = 0.96
	sourceNativeCaptions     = "native-captions"
)

// Progress checkpoints, monotonic within one attempt.
const (
	progressMetadata        = 5
	progressTier2Download   = 10
	progressTier2Transcribe = 40
	progressTier2Upload     = 90
	progressTier1Upload     = 50
)

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoURL string) (ytdlp.Metadata, error)
}

type CaptionFetcher interface {
	DownloadCaptions(ctx context.Context, videoURL, outputDir, subLangs string) error
}

type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoURL, outputDir string) (string, error)
}

type SpeechModel interface {
	Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error)
	Source() string
}

type Persister interface {
	Persist(ctx context.Context, videoID string, segments []model.Segment) (artifacts.Artifacts, error)
}

type CaptionParser interface {
	Segments(dir, lang string) ([]model.Segment, error)
}

type Options struct {
	// CaptionsEnabled gates tier 1 entirely.
	CaptionsEnabled bool
	// SubLang is the preferred caption language.
	SubLang string
	// WorkDir is where per-attempt temp directories are created. Empty means
	// the system temp dir.
	WorkDir string
}

type Executor struct {
	meta     MetadataFetcher
	captions CaptionFetcher
	audio    AudioDownloader
	speech   SpeechModel
	sink     Persister
	parser   CaptionParser
	opts     Options
	log      *zap.Logger
}

func NewExecutor(meta MetadataFetcher, captions CaptionFetcher, audio AudioDownloader,
	speech SpeechModel, sink Persister, parser CaptionParser, opts Options, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if parser == nil {
		parser = vttParser{}
	}
	return &Executor{
		meta:     meta,
		captions: captions,
		audio:    audio,
		speech:   speech,
		sink:     sink,
		parser:   parser,
		opts:     opts,
		log:      log,
	}
}

// Execute runs one attempt. report is called with progress checkpoints; the
// worker mirrors them into the queue. All temp files for the attempt live
// under one private directory, removed on every exit path.
func (e *Executor) Execute(ctx context.Context, job model.Job, report func(int)) (*model.TranscriptResult, *model.Error) {
	if report == nil {
		report = func(int) {}
	}
	log := e.log.With(zap.String("job_id", job.ID))

	videoID, err := ytdlp.ExtractVideoID(job.Input.SourceURL)
	if err != nil {
		return nil, model.AsError(err)
	}
	log = log.With(zap.String("video_id", videoID))

	// Tools only ever see the canonical watch URL. The raw input may be a
	// bare ID, and IDs can start with "-", which argv would read as an option.
	sourceURL := ytdlp.CanonicalURL(videoID)

	workDir, err := os.MkdirTemp(e.opts.WorkDir, "ytt-attempt-*")
	if err != nil {
		return nil, model.NewError(model.KindOther, "create attempt work directory: %v", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("leaked attempt work directory", zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	meta, metaErr := e.meta.FetchMetadata(ctx, sourceURL)
	if metaErr != nil {
		return nil, metadataError(metaErr)
	}
	report(progressMetadata)

	envelope := model.TranscriptResult{
		VideoID:      videoID,
		Title:        meta.Title,
		Channel:      meta.Channel,
		CanonicalURL: canonicalURL(meta, videoID),
	}

	if e.opts.CaptionsEnabled && !job.Input.ForceFallbackTier {
		segments, tier1Err := e.runTier1(ctx, sourceURL, workDir)
		if tier1Err != nil {
			// Tier 1 failures never end the job; the local speech path does
			// not depend on caption delivery and may still succeed.
			log.Info("tier 1 failed, falling through to tier 2",
				zap.String("kind", string(tier1Err.Kind)),
				zap.String("error", tier1Err.Message))
		} else if len(segments) > 0 {
			report(progressTier1Upload)
			stored, persistErr := e.sink.Persist(ctx, videoID, segments)
			if persistErr != nil {
				return nil, model.AsError(persistErr)
			}
			envelope.Source = sourceNativeCaptions
			envelope.ConfidenceScore = confidenceNativeCaptions
			envelope.Segments = segments
			envelope.Tier = 1
			envelope.PlainTextURL = stored.PlainTextURL
			envelope.JSONURL = stored.JSONURL
			report(100)
			return &envelope, nil
		}
	}

	segments, tier2Err := e.runTier2(ctx, sourceURL, workDir, report)
	if tier2Err != nil {
		return nil, tier2Err
	}
	report(progressTier2Upload)
	stored, persistErr := e.sink.Persist(ctx, videoID, segments)
	if persistErr != nil {
		return nil, model.AsError(persistErr)
	}
	envelope.Source = e.speech.Source()
	envelope.ConfidenceScore = confidenceSpeechModel
	envelope.Segments = segments
	envelope.Tier = 2
	envelope.PlainTextURL = stored.PlainTextURL
	envelope.JSONURL = stored.JSONURL
	report(100)
	return &envelope, nil
}

// runTier1 extracts native captions. An empty segment list with nil error
// means the video simply has no captions.
func (e *Executor) runTier1(ctx context.Context, videoURL, workDir string) ([]model.Segment, *model.Error) {
	dir := filepath.Join(workDir, "captions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewError(model.KindOther, "create captions directory: %v", err)
	}
	if err := e.captions.DownloadCaptions(ctx, videoURL, dir, e.opts.SubLang); err != nil {
		return nil, toolError(err)
	}
	segments, err := e.parser.Segments(dir, e.opts.SubLang)
	if err != nil {
		return nil, model.NewError(model.KindOther, "parse captions: %v", err)
	}
	return segments, nil
}

func (e *Executor) runTier2(ctx context.Context, videoURL, workDir string, report func(int)) ([]model.Segment, *model.Error) {
	report(progressTier2Download)
	audioPath, err := e.audio.DownloadAudio(ctx, videoURL, workDir)
	if err != nil {
		terr := toolError(err)
		if classify.IsAuthKind(terr.Kind) {
			// Both tiers are blocked by the same root cause; fail the job
			// rather than burning retries against the block.
			return nil, terr.WithRetryable(false)
		}
		return nil, terr
	}
	report(progressTier2Transcribe)

	segments, err := e.speech.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, toolError(err)
	}
	if len(segments) == 0 {
		return nil, model.NewError(model.KindOther, "speech model produced no segments")
	}
	return segments, nil
}

// toolError coerces a subprocess failure into the taxonomy: typed kinds
// (timeout, oversized output) pass through, everything else goes through the
// pattern classifier.
func toolError(err error) *model.Error {
	e := model.AsError(err)
	if e.Kind != model.KindOther {
		return e
	}
	return &model.Error{Kind: classify.Classify(e.Message), Message: e.Message}
}

// metadataError applies the metadata-stage policy: platform blocks and
// expired sessions are retryable here, anything else unclassified becomes
// MetadataUnavailable.
func metadataError(err error) *model.Error {
	e := toolError(err)
	if classify.IsAuthKind(e.Kind) {
		return e.WithRetryable(true)
	}
	if e.Kind == model.KindOther {
		return model.NewError(model.KindMetadataUnavailable, "%s", e.Message)
	}
	return e
}

func canonicalURL(meta ytdlp.Metadata, videoID string) string {
	if meta.WebpageURL != "" {
		return meta.WebpageURL
	}
	return ytdlp.CanonicalURL(videoID)
}
