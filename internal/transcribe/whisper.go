package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WhisperOptions configures the Whisper HTTP engine. Device, ComputeType and
// CPUThreads are forwarded as extra form fields; OpenAI-compatible servers
// that don't understand them ignore unknown fields.
type WhisperOptions struct {
	URL         string
	Model       string
	Device      string
	ComputeType string
	CPUThreads  int
	Timeout     time.Duration
}

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// and implements Engine.
type WhisperClient struct {
	opts   WhisperOptions
	client *http.Client
}

// whisperSegment is one entry of the verbose_json "segments" array.
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

// NewWhisperClient creates a Whisper HTTP engine.
func NewWhisperClient(opts WhisperOptions) *WhisperClient {
	return &WhisperClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.opts.Model }

// Transcribe sends the audio file as multipart/form-data and parses the
// verbose_json response. Span texts are trimmed (faster-whisper emits a
// leading space on every segment) and timestamps rounded to centiseconds.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	if wc.opts.Model != "" {
		w.WriteField("model", wc.opts.Model)
	}
	if language != "" {
		w.WriteField("language", language)
	}
	w.WriteField("response_format", "verbose_json")
	w.WriteField("beam_size", "5")
	w.WriteField("vad_filter", "true")

	// Backend placement hints, ignored by servers that pick their own.
	if wc.opts.Device != "" {
		w.WriteField("device", wc.opts.Device)
	}
	if wc.opts.ComputeType != "" {
		w.WriteField("compute_type", wc.opts.ComputeType)
	}
	if wc.opts.CPUThreads > 0 {
		w.WriteField("cpu_threads", fmt.Sprintf("%d", wc.opts.CPUThreads))
	}

	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.opts.URL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	spans := make([]Span, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		spans = append(spans, Span{
			Start: round2(s.Start),
			End:   round2(s.End),
			Text:  strings.TrimSpace(s.Text),
		})
	}

	return &Result{
		Spans:    spans,
		Language: parsed.Language,
		Duration: parsed.Duration,
	}, nil
}
