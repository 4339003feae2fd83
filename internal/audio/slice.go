package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Slicer extracts a clip from a media file without re-encoding.
type Slicer interface {
	// Slice writes the clip starting at start seconds with the given length
	// (seconds) to dst. The tool clamps the clip to the actual end of the
	// source, so length may run past it.
	Slice(ctx context.Context, src, dst string, start, length float64) error
}

// FFmpeg slices audio by shelling out to ffmpeg with stream copy.
type FFmpeg struct{}

// Slice runs ffmpeg -ss/-t with codec copy. Stream copy cuts on packet
// boundaries, which is fine here: segment edges are covered by overlap.
func (FFmpeg) Slice(ctx context.Context, src, dst string, start, length float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", src,
		"-ss", ftoa(start),
		"-t", ftoa(length),
		"-c", "copy",
		"-avoid_negative_ts", "1",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg slice %s @%ss: %w (%s)", src, ftoa(start), err, lastLine(stderr.String()))
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
