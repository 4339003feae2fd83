package transcribe

import (
	"math"
	"sort"
	"strings"
)

// overlapTolerance is the window (seconds) within which two adjacent spans
// are considered candidates for a boundary duplicate.
const overlapTolerance = 0.5

// Merge assembles per-segment results into a single ordered transcript.
// Failed results are dropped; the language is the first one detected in index
// order. Spans are flattened, stably sorted by start time and then swept for
// overlap duplicates. The stable sort matters: ties keep index order, which
// the duplicate sweep relies on.
func Merge(results []SegmentResult) Transcript {
	var spans []Span
	language := ""

	for _, r := range results {
		if !r.OK {
			continue
		}
		spans = append(spans, r.Spans...)
		if language == "" && r.Language != "" {
			language = r.Language
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	spans = RemoveOverlapDuplicates(spans, overlapTolerance)

	return Transcript{Spans: spans, Language: language}
}

// RemoveOverlapDuplicates drops spans that segment overlap produced twice.
// Single left-to-right pass: a span is dropped when it starts within
// tolerance of the end of the most recently KEPT span and carries the same
// text (case-insensitive, trimmed). Comparing only against the last kept span
// means a duplicate separated by one distinct span survives; that is the
// intended behavior of this sweep, not an oversight to fix here.
func RemoveOverlapDuplicates(spans []Span, tolerance float64) []Span {
	if len(spans) == 0 {
		return spans
	}

	kept := []Span{spans[0]}
	for _, sp := range spans[1:] {
		last := kept[len(kept)-1]
		if math.Abs(sp.Start-last.End) < tolerance && sameText(sp.Text, last.Text) {
			continue
		}
		kept = append(kept, sp)
	}
	return kept
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
