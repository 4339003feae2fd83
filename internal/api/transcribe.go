package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/audio"
	"github.com/snarg/scribed/internal/transcribe"
)

// Runner is the transcription pipeline as the HTTP layer sees it.
type Runner interface {
	Run(ctx context.Context, path, language string, progress func(int)) (*transcribe.Transcript, error)
}

// TranscribeHandler serves the synchronous transcription endpoints.
type TranscribeHandler struct {
	pipeline Runner
	log      zerolog.Logger
}

// NewTranscribeHandler creates the handler.
func NewTranscribeHandler(pipeline Runner, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		pipeline: pipeline,
		log:      log.With().Str("handler", "transcribe").Logger(),
	}
}

// TranscriptionResponse is the body of a successful direct transcription.
type TranscriptionResponse struct {
	Text     string            `json:"text"`
	Segments []transcribe.Span `json:"segments"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
}

// TimestampedResponse extends TranscriptionResponse with the
// timestamp-prefixed line rendering.
type TimestampedResponse struct {
	Text          string            `json:"text"`
	FormattedText string            `json:"formatted_text"`
	Segments      []transcribe.Span `json:"segments"`
	Language      string            `json:"language"`
	Duration      float64           `json:"duration"`
}

// Transcribe handles POST /api/v1/transcribe: multipart upload, synchronous
// result. Long files are segmented and processed concurrently behind the
// same response.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	t, ok := h.run(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, TranscriptionResponse{
		Text:     transcribe.PlainText(t.Spans),
		Segments: spansOrEmpty(t.Spans),
		Language: languageOrUnknown(t.Language),
		Duration: t.Duration,
	})
}

// TranscribeWithTimestamps handles POST /api/v1/transcribe-with-timestamps,
// adding the "[MM:SS] text" line rendering.
func (h *TranscribeHandler) TranscribeWithTimestamps(w http.ResponseWriter, r *http.Request) {
	t, ok := h.run(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, TimestampedResponse{
		Text:          transcribe.PlainText(t.Spans),
		FormattedText: transcribe.FormatTimestamped(t.Spans),
		Segments:      spansOrEmpty(t.Spans),
		Language:      languageOrUnknown(t.Language),
		Duration:      t.Duration,
	})
}

// run validates the upload, stages it in a request-scoped temp dir and runs
// the pipeline. It writes the error response itself when ok is false.
func (h *TranscribeHandler) run(w http.ResponseWriter, r *http.Request) (*transcribe.Transcript, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return nil, false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !audio.SupportedExtension(header.Filename) {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf(
			"unsupported file format: %s (supported: %s)",
			ext, strings.Join(audio.SupportedExtensions(), ", ")))
		return nil, false
	}

	tempDir, err := os.MkdirTemp("", "transcribe_")
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not create temp dir")
		return nil, false
	}
	defer os.RemoveAll(tempDir)

	inputPath := filepath.Join(tempDir, "input"+ext)
	dst, err := os.Create(inputPath)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "could not stage upload")
		return nil, false
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		WriteError(w, http.StatusInternalServerError, "could not stage upload")
		return nil, false
	}
	dst.Close()

	h.log.Info().Str("file", header.Filename).Int64("size", header.Size).Msg("transcribing upload")

	t, err := h.pipeline.Run(r.Context(), inputPath, r.FormValue("language"), nil)
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("transcription failed")
		WriteError(w, http.StatusInternalServerError, "transcription failed: "+err.Error())
		return nil, false
	}
	return t, true
}

func spansOrEmpty(spans []transcribe.Span) []transcribe.Span {
	if spans == nil {
		return []transcribe.Span{}
	}
	return spans
}

func languageOrUnknown(lang string) string {
	if lang == "" {
		return "unknown"
	}
	return lang
}
