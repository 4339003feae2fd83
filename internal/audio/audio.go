// Package audio wraps the external media tooling (ffprobe, ffmpeg) behind
// small interfaces so the pipeline can be tested without shelling out.
package audio

import (
	"path/filepath"
	"sort"
	"strings"
)

var supportedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
	".aac":  true,
	".aiff": true,
}

// SupportedExtension reports whether the file name carries a supported audio
// extension. The check is case-insensitive.
func SupportedExtension(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// SupportedExtensions returns the accepted extensions in sorted order, for
// error messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
