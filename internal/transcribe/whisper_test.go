package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_000.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return path
}

func TestWhisperCppTranscribe(t *testing.T) {
	var gotFields map[string]string
	var gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		if fh := r.MultipartForm.File["file"]; len(fh) == 1 {
			gotFile = fh[0].Filename
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"language": "english",
			"duration": 4.0,
			"text": "one two",
			"segments": [
				{"start": 0.0, "end": 1.5, "text": " one"},
				{"start": 1.5, "end": 4.0, "text": " two"}
			]
		}`))
	}))
	defer srv.Close()

	tr, err := NewWhisperCppTranscriber(Options{BaseURL: srv.URL + "/", Language: "en"})
	if err != nil {
		t.Fatalf("NewWhisperCppTranscriber() error: %v", err)
	}

	result, err := tr.Transcribe(context.Background(), writeTempAudio(t))
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}

	if gotFile != "chunk_000.wav" {
		t.Errorf("uploaded file name = %q", gotFile)
	}
	if gotFields["response_format"] != "verbose_json" || gotFields["language"] != "en" || gotFields["translate"] != "false" {
		t.Errorf("unexpected form fields: %v", gotFields)
	}

	if len(result.Segments) != 2 || result.Segments[1].Text != "two" || result.Segments[1].End != 4 {
		t.Errorf("unexpected segments: %+v", result.Segments)
	}
	if result.Language != "english" {
		t.Errorf("Language = %q, want english", result.Language)
	}
	if result.Duration.Seconds() != 4 {
		t.Errorf("Duration = %v, want 4s", result.Duration)
	}
}

func TestWhisperCppTranslateTask(t *testing.T) {
	var translate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		translate = r.FormValue("translate")
		_, _ = w.Write([]byte(`{"text": "hello", "duration": 1}`))
	}))
	defer srv.Close()

	tr, err := NewWhisperCppTranscriber(Options{BaseURL: srv.URL, Language: "fr", Task: TaskTranslate})
	if err != nil {
		t.Fatalf("NewWhisperCppTranscriber() error: %v", err)
	}

	result, err := tr.Transcribe(context.Background(), writeTempAudio(t))
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if translate != "true" {
		t.Errorf("translate field = %q, want true", translate)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want en", result.Language)
	}
	if len(result.Segments) != 1 || result.Segments[0].End != 1 {
		t.Errorf("unexpected segments: %+v", result.Segments)
	}
}

func TestWhisperCppServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := NewWhisperCppTranscriber(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhisperCppTranscriber() error: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), writeTempAudio(t)); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestWhisperCppMissingFile(t *testing.T) {
	tr, err := NewWhisperCppTranscriber(Options{})
	if err != nil {
		t.Fatalf("NewWhisperCppTranscriber() error: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), "missing.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewWhisperCppTranscriberInvalidURL(t *testing.T) {
	if _, err := NewWhisperCppTranscriber(Options{BaseURL: "localhost:8080"}); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
