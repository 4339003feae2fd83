package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/audio"
	"github.com/snarg/scribed/internal/metrics"
)

// progressProbed is the progress checkpoint reported once the duration probe
// has succeeded. Claiming sets 10, completion sets 100.
const progressProbed = 30

// ErrAllSegmentsFailed is returned when segmentation ran but not a single
// segment could be transcribed. Partial results are a success; zero results
// are a job failure.
var ErrAllSegmentsFailed = errors.New("no segment could be transcribed")

// Options configures a Pipeline.
type Options struct {
	// MaxSegmentSeconds is the duration threshold: files at or below it are
	// transcribed in one pass, files strictly above it are segmented.
	MaxSegmentSeconds int
	// Workers bounds concurrent engine calls during segmented transcription.
	Workers int
	// TempDir is the parent for per-job scratch directories ("" = system
	// temp dir).
	TempDir string
}

// Pipeline turns one local audio file into a Transcript.
type Pipeline struct {
	loader *Loader
	probe  audio.Prober
	slicer audio.Slicer
	opts   Options
	log    zerolog.Logger
}

// New creates a pipeline. The engine behind loader is initialized on first
// use and shared process-wide.
func New(loader *Loader, probe audio.Prober, slicer audio.Slicer, opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{loader: loader, probe: probe, slicer: slicer, opts: opts, log: log}
}

// Loader exposes the engine loader, for health reporting and pre-loading.
func (p *Pipeline) Loader() *Loader { return p.loader }

// Run transcribes the file at path. language is an optional hint (""
// auto-detects). progress, if non-nil, receives coarse checkpoint values as
// the job advances. Scratch files are always removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, path, language string, progress func(int)) (*Transcript, error) {
	engine, err := p.loader.Get()
	if err != nil {
		return nil, fmt.Errorf("load engine: %w", err)
	}

	start := time.Now()

	duration, err := p.probe.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("probe duration: %w", ErrDurationUnknown)
	}
	p.log.Info().Float64("duration", duration).Str("path", path).Msg("audio probed")

	if progress != nil {
		progress(progressProbed)
	}

	var t *Transcript
	if duration > float64(p.opts.MaxSegmentSeconds) {
		t, err = p.runSegmented(ctx, engine, path, language, duration)
	} else {
		t, err = p.runDirect(ctx, engine, path, language, duration)
	}
	if err != nil {
		return nil, err
	}

	metrics.TranscribeDuration.Observe(time.Since(start).Seconds())
	return t, nil
}

// runDirect transcribes the whole file in a single engine pass.
func (p *Pipeline) runDirect(ctx context.Context, engine Engine, path, language string, duration float64) (*Transcript, error) {
	res, err := engine.Transcribe(ctx, path, language)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	if res.Duration > 0 {
		duration = res.Duration
	}
	p.log.Info().Int("spans", len(res.Spans)).Str("language", res.Language).Msg("transcription complete")

	return &Transcript{Spans: res.Spans, Language: res.Language, Duration: duration}, nil
}

// runSegmented splits the file, transcribes segments concurrently and merges
// the results. Segments live in a job-scoped temp dir removed on every exit
// path.
func (p *Pipeline) runSegmented(ctx context.Context, engine Engine, path, language string, duration float64) (*Transcript, error) {
	tempDir, err := os.MkdirTemp(p.opts.TempDir, "transcribe_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	segmenter := NewSegmenter(p.probe, p.slicer, p.log)
	segments, err := segmenter.Split(ctx, path, tempDir, p.opts.MaxSegmentSeconds)
	if err != nil {
		return nil, err
	}
	p.log.Info().Int("segments", len(segments)).Msg("audio segmented")

	scheduler := NewScheduler(engine, p.opts.Workers, p.log)
	results := scheduler.TranscribeAll(ctx, segments, language)

	succeeded := 0
	for _, r := range results {
		if r.OK {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, ErrAllSegmentsFailed
	}

	t := Merge(results)
	t.Duration = duration
	p.log.Info().Int("spans", len(t.Spans)).Str("language", t.Language).Msg("transcription complete")

	return &t, nil
}
