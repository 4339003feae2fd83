package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reports the total duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbe measures duration by shelling out to ffprobe.
type FFProbe struct{}

// Duration runs ffprobe and parses the container-level duration.
func (FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w (%s)", path, err, lastLine(stderr.String()))
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q", path, strings.TrimSpace(string(out)))
	}
	return d, nil
}

// lastLine extracts the final non-empty line of tool output, which for the
// ff* tools is where the actual error message lives.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
