package transcribe

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/metrics"
)

// Scheduler fans segment transcription out over a bounded worker pool.
type Scheduler struct {
	engine  Engine
	workers int
	log     zerolog.Logger
}

// NewScheduler creates a scheduler running at most workers engine calls
// concurrently.
func NewScheduler(engine Engine, workers int, log zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{engine: engine, workers: workers, log: log}
}

type schedulerJob struct {
	slot    int
	segment Segment
}

// TranscribeAll transcribes every segment and returns exactly one result per
// input, sorted by segment index. Completion order carries no meaning: each
// result is tagged with its segment's index and reordered before return. A
// failed segment yields SegmentResult{OK: false}; it never aborts siblings.
func (s *Scheduler) TranscribeAll(ctx context.Context, segments []Segment, language string) []SegmentResult {
	results := make([]SegmentResult, len(segments))

	jobs := make(chan schedulerJob)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.slot] = s.transcribeSegment(ctx, j.segment, language)
			}
		}()
	}

	for i, seg := range segments {
		jobs <- schedulerJob{slot: i, segment: seg}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

func (s *Scheduler) transcribeSegment(ctx context.Context, seg Segment, language string) SegmentResult {
	res, err := s.engine.Transcribe(ctx, seg.Path, language)
	if err != nil {
		s.log.Error().Err(err).Int("index", seg.Index).Msg("segment transcription failed")
		metrics.SegmentsTranscribed.WithLabelValues("error").Inc()
		return SegmentResult{Index: seg.Index, Err: err}
	}

	spans := make([]Span, 0, len(res.Spans))
	for _, sp := range res.Spans {
		spans = append(spans, Span{
			Start: round2(sp.Start + seg.StartOffset),
			End:   round2(sp.End + seg.StartOffset),
			Text:  sp.Text,
		})
	}

	metrics.SegmentsTranscribed.WithLabelValues("ok").Inc()
	return SegmentResult{Index: seg.Index, OK: true, Language: res.Language, Spans: spans}
}
