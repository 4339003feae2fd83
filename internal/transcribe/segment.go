package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/audio"
)

// overlapSeconds is added to every slice so words falling on a cut boundary
// appear in at least one segment. The merge pass removes the resulting
// duplicates.
const overlapSeconds = 1.0

// ErrDurationUnknown is returned when the probe cannot determine a positive
// duration for the input file.
var ErrDurationUnknown = errors.New("could not determine audio duration")

// Segmenter slices an audio file into fixed-length overlapping segments.
type Segmenter struct {
	probe  audio.Prober
	slicer audio.Slicer
	log    zerolog.Logger
}

// NewSegmenter creates a segmenter over the given probe and slicer.
func NewSegmenter(probe audio.Prober, slicer audio.Slicer, log zerolog.Logger) *Segmenter {
	return &Segmenter{probe: probe, slicer: slicer, log: log}
}

// Split produces segments on a fixed grid: segment k starts at
// k*maxSegmentSeconds and is maxSegmentSeconds+overlap long, with the slicer
// clamping the final slice to the true end of the file. A slice that fails is
// logged and skipped, not retried: the job proceeds with a gap rather than
// failing outright, and the index still advances so offsets stay on the grid.
func (s *Segmenter) Split(ctx context.Context, inputPath, outputDir string, maxSegmentSeconds int) ([]Segment, error) {
	duration, err := s.probe.Duration(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDurationUnknown, err)
	}
	if duration <= 0 {
		return nil, ErrDurationUnknown
	}

	ext := filepath.Ext(inputPath)
	var segments []Segment
	index := 0

	for t := 0.0; t < duration; t += float64(maxSegmentSeconds) {
		segPath := filepath.Join(outputDir, fmt.Sprintf("segment_%04d%s", index, ext))
		if err := s.slicer.Slice(ctx, inputPath, segPath, t, float64(maxSegmentSeconds)+overlapSeconds); err != nil {
			s.log.Error().Err(err).Int("index", index).Msg("failed to create segment")
		} else {
			segments = append(segments, Segment{Path: segPath, StartOffset: t, Index: index})
			s.log.Debug().Int("index", index).Float64("start", t).Msg("created segment")
		}
		index++
	}

	return segments, nil
}
