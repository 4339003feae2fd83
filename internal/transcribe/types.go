// Package transcribe implements the transcription pipeline: duration probe,
// fixed-grid segmentation with overlap, bounded concurrent transcription,
// ordered merge with overlap de-duplication, and output formatting.
package transcribe

import "math"

// Span is a single timestamped text fragment. Start and End are seconds from
// the beginning of the original file.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment describes one bounded-duration slice of the source audio produced
// by the Segmenter. Index is the sole ordering key.
type Segment struct {
	Path        string
	StartOffset float64
	Index       int
}

// SegmentResult is the outcome of transcribing one segment. A failed segment
// carries Err and no spans; it never aborts sibling segments.
type SegmentResult struct {
	Index    int
	OK       bool
	Language string
	Spans    []Span
	Err      error
}

// Transcript is the merged, ordered, duplicate-free result for one file.
type Transcript struct {
	Spans    []Span
	Language string
	Duration float64
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
