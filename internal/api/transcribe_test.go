package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/transcribe"
)

type fakePipeline struct {
	transcript *transcribe.Transcript
	err        error
	gotPath    string
	gotLang    string
}

func (p *fakePipeline) Run(ctx context.Context, path, language string, progress func(int)) (*transcribe.Transcript, error) {
	p.gotPath = path
	p.gotLang = language
	return p.transcript, p.err
}

// multipartBody builds a multipart form with one "audio" file part plus any
// extra fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTranscribeHandler(t *testing.T) {
	t.Run("returns_transcript_json", func(t *testing.T) {
		pipeline := &fakePipeline{transcript: &transcribe.Transcript{
			Spans: []transcribe.Span{
				{Start: 0, End: 5, Text: "hello"},
				{Start: 5, End: 9, Text: "world"},
			},
			Language: "en",
			Duration: 9.5,
		}}
		h := NewTranscribeHandler(pipeline, zerolog.Nop())

		body, contentType := multipartBody(t, "a.mp3", []byte("audio"), map[string]string{"language": "en"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Transcribe(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var resp TranscriptionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Text != "hello world" {
			t.Errorf("text = %q", resp.Text)
		}
		if len(resp.Segments) != 2 || resp.Language != "en" || resp.Duration != 9.5 {
			t.Errorf("response = %+v", resp)
		}
		if pipeline.gotLang != "en" {
			t.Errorf("language hint = %q, want en", pipeline.gotLang)
		}
	})

	t.Run("timestamped_variant_adds_formatted_text", func(t *testing.T) {
		pipeline := &fakePipeline{transcript: &transcribe.Transcript{
			Spans:    []transcribe.Span{{Start: 65, End: 70, Text: "hi"}},
			Language: "en",
		}}
		h := NewTranscribeHandler(pipeline, zerolog.Nop())

		body, contentType := multipartBody(t, "a.wav", []byte("audio"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe-with-timestamps", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.TranscribeWithTimestamps(rec, req)

		var resp TimestampedResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.FormattedText != "[01:05] hi" {
			t.Errorf("formatted_text = %q", resp.FormattedText)
		}
	})

	t.Run("unsupported_extension_is_rejected", func(t *testing.T) {
		h := NewTranscribeHandler(&fakePipeline{}, zerolog.Nop())

		body, contentType := multipartBody(t, "notes.txt", []byte("hi"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Transcribe(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "unsupported file format: .txt") {
			t.Errorf("body = %s", rec.Body)
		}
	})

	t.Run("missing_audio_field_is_rejected", func(t *testing.T) {
		h := NewTranscribeHandler(&fakePipeline{}, zerolog.Nop())

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("language", "en")
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.Transcribe(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("pipeline_error_is_500", func(t *testing.T) {
		h := NewTranscribeHandler(&fakePipeline{err: errors.New("probe duration: boom")}, zerolog.Nop())

		body, contentType := multipartBody(t, "a.mp3", []byte("audio"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Transcribe(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "transcription failed") {
			t.Errorf("body = %s", rec.Body)
		}
	})

	t.Run("empty_result_uses_unknown_language", func(t *testing.T) {
		h := NewTranscribeHandler(&fakePipeline{transcript: &transcribe.Transcript{}}, zerolog.Nop())

		body, contentType := multipartBody(t, "a.mp3", []byte("audio"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Transcribe(rec, req)

		var resp TranscriptionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Language != "unknown" {
			t.Errorf("language = %q, want unknown", resp.Language)
		}
		if resp.Segments == nil {
			t.Error("segments should serialize as [], not null")
		}
	})
}
