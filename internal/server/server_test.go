package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/transcribe"
)

type fakeRunner struct {
	mu     sync.Mutex
	paths  []string
	result *transcribe.Result
	err    error
	// when set, Run blocks until it is closed or ctx is done
	release chan struct{}
}

func (f *fakeRunner) Run(
	ctx context.Context,
	mediaPath string,
	progress func(pipeline.Stage),
) (*transcribe.Result, error) {
	f.mu.Lock()
	f.paths = append(f.paths, mediaPath)
	f.mu.Unlock()

	progress(pipeline.StageLoading)
	progress(pipeline.StageModel)

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	progress(pipeline.StageTranscribing)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testResult() *transcribe.Result {
	return &transcribe.Result{
		Segments: []subtitle.Segment{
			{Start: 0, End: 1.5, Text: " Hello "},
			{Start: 61.25, End: 63, Text: "world"},
		},
		Language:       "en",
		Duration:       64 * time.Second,
		ProcessingTime: 1500 * time.Millisecond,
	}
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s := New(Options{
		Addr:          ":0",
		MaxUploadSize: 1 << 20,
		TempDir:       t.TempDir(),
		ModelName:     "whisper-1",
	}, runner, nil)
	t.Cleanup(s.Close)
	return s
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("CreateFormFile() error: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, s *Server, name string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", name, []byte("fake media"))
	req := httptest.NewRequest(http.MethodPost, "/api/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadID(t *testing.T, s *Server, name string) string {
	t.Helper()
	rec := upload(t, s, name)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected a session id")
	}
	if resp.EventsURL != "/api/transcriptions/"+resp.ID+"/events" {
		t.Errorf("EventsURL = %q", resp.EventsURL)
	}
	return resp.ID
}

func waitForStatus(t *testing.T, s *Server, id string, want Status) {
	t.Helper()
	sess, ok := s.Store().Get(id)
	if !ok {
		t.Fatalf("session %s not found", id)
	}
	deadline := time.After(5 * time.Second)
	for {
		snap, changed := sess.Snapshot()
		if snap.Status == want {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for status %q, last %q", want, snap.Status)
		}
	}
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read events: %v", err)
	}
	return events
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t, &fakeRunner{result: testResult()})

	tests := []struct {
		name       string
		field      string
		file       string
		size       int
		wantStatus int
	}{
		{"missing file", "other", "clip.mp4", 10, http.StatusBadRequest},
		{"unsupported type", "file", "notes.txt", 10, http.StatusUnsupportedMediaType},
		{"unsupported video container", "file", "clip.mkv", 10, http.StatusUnsupportedMediaType},
		{"too large", "file", "clip.mp4", 2 << 20, http.StatusRequestEntityTooLarge},
		{"accepted", "file", "clip.MP4", 10, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.field, tt.file, bytes.Repeat([]byte("x"), tt.size))
			req := httptest.NewRequest(http.MethodPost, "/api/transcriptions", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				var resp map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
					t.Errorf("expected JSON error body, got %q", rec.Body.String())
				}
			}
		})
	}
}

func TestUploadRunsPipeline(t *testing.T) {
	runner := &fakeRunner{result: testResult()}
	s := newTestServer(t, runner)

	id := uploadID(t, s, "talk.mp3")
	waitForStatus(t, s, id, StatusCompleted)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.paths) != 1 || !strings.HasSuffix(runner.paths[0], ".mp3") {
		t.Errorf("runner paths = %v", runner.paths)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+id, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.Status != StatusCompleted || snap.Segments != 2 || snap.FileName != "talk.mp3" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.ProcessingTime != 1.5 {
		t.Errorf("ProcessingTime = %v, want 1.5", snap.ProcessingTime)
	}
	wantStages := []string{
		string(pipeline.StageLoading),
		string(pipeline.StageModel),
		string(pipeline.StageTranscribing),
	}
	if strings.Join(snap.Stages, "|") != strings.Join(wantStages, "|") {
		t.Errorf("Stages = %v, want %v", snap.Stages, wantStages)
	}
}

func TestEventsStreamCompleted(t *testing.T) {
	runner := &fakeRunner{result: testResult(), release: make(chan struct{})}
	s := newTestServer(t, runner)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	id := uploadID(t, s, "clip.mov")

	resp, err := http.Get(ts.URL + "/api/transcriptions/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	close(runner.release)
	events := readEvents(t, resp.Body)

	var names []string
	for _, e := range events {
		names = append(names, e.name)
	}
	want := "stage,stage,stage,caption,caption,complete"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}

	var first captionEvent
	if err := json.Unmarshal([]byte(events[3].data), &first); err != nil {
		t.Fatalf("decode caption: %v", err)
	}
	if first.Index != 0 || first.Line != "[00:00.000 --> 00:01.500] Hello" {
		t.Errorf("first caption = %+v", first)
	}

	var second captionEvent
	if err := json.Unmarshal([]byte(events[4].data), &second); err != nil {
		t.Fatalf("decode caption: %v", err)
	}
	if second.Line != "[01:01.250 --> 01:03.000] world" {
		t.Errorf("second caption = %q", second.Line)
	}

	var done completeEvent
	if err := json.Unmarshal([]byte(events[5].data), &done); err != nil {
		t.Fatalf("decode complete: %v", err)
	}
	if done.ProcessingTime != 1.5 || done.Message != "Processing complete! (1.50s)" {
		t.Errorf("complete = %+v", done)
	}
	if done.SRTURL != "/api/transcriptions/"+id+"/srt" {
		t.Errorf("SRTURL = %q", done.SRTURL)
	}
}

func TestEventsStreamFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("failed to decode media: boom")}
	s := newTestServer(t, runner)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	id := uploadID(t, s, "clip.wav")
	waitForStatus(t, s, id, StatusFailed)

	resp, err := http.Get(ts.URL + "/api/transcriptions/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	last := events[len(events)-1]
	if last.name != "error" {
		t.Fatalf("last event = %q, want error", last.name)
	}

	var e errorEvent
	if err := json.Unmarshal([]byte(last.data), &e); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if e.Message != "Error processing file: failed to decode media: boom" {
		t.Errorf("message = %q", e.Message)
	}
	for _, ev := range events {
		if ev.name == "caption" || ev.name == "complete" {
			t.Errorf("unexpected %s event after failure", ev.name)
		}
	}
}

func TestDownloadSRT(t *testing.T) {
	runner := &fakeRunner{result: testResult(), release: make(chan struct{})}
	s := newTestServer(t, runner)

	id := uploadID(t, s, "clip.mp4")
	waitForStatus(t, s, id, StatusRunning)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+id+"/srt", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status before completion = %d, want %d", rec.Code, http.StatusConflict)
	}

	close(runner.release)
	waitForStatus(t, s, id, StatusCompleted)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+id+"/srt", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="captions.srt"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHello\n\n" +
		"2\n00:01:01,250 --> 00:01:03,000\nworld\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, &fakeRunner{result: testResult()})
	id := uploadID(t, s, "clip.mp4")
	waitForStatus(t, s, id, StatusCompleted)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+id+"/preview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<pre><code>") || !strings.Contains(body, "[01:01.250 --&gt; 01:03.000] world") {
		t.Errorf("unexpected preview: %q", body)
	}
}

func TestDeleteCancelsRun(t *testing.T) {
	runner := &fakeRunner{result: testResult(), release: make(chan struct{})}
	s := newTestServer(t, runner)

	id := uploadID(t, s, "clip.mp4")
	sess, _ := s.Store().Get(id)
	waitForStatus(t, s, id, StatusRunning)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transcriptions/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	snap, _ := sess.Snapshot()
	if snap.Status != StatusCancelled {
		t.Errorf("status after delete = %q, want cancelled", snap.Status)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcriptions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transcriptions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Automatic Caption Generator", "Powered by whisper-1", ".mov,.mp3,.mp4,.wav"} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	for _, path := range []string{"", "/events", "/srt", "/preview"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcriptions/missing"+path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %q status = %d, want %d", path, rec.Code, http.StatusNotFound)
		}
	}
}

func TestCORSOptions(t *testing.T) {
	tests := []struct {
		origins   []string
		wantCreds bool
		wantFirst string
	}{
		{nil, false, "*"},
		{[]string{"*"}, false, "*"},
		{[]string{"https://example.com"}, true, "https://example.com"},
	}

	for _, tt := range tests {
		opts := corsOptions(tt.origins)
		if opts.AllowCredentials != tt.wantCreds {
			t.Errorf("corsOptions(%v).AllowCredentials = %v", tt.origins, opts.AllowCredentials)
		}
		if opts.AllowedOrigins[0] != tt.wantFirst {
			t.Errorf("corsOptions(%v).AllowedOrigins = %v", tt.origins, opts.AllowedOrigins)
		}
	}
}
