package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/caption"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/subtitle"
)

const errorPrefix = "Error processing file: "

type pageData struct {
	Title       string
	ModelName   string
	Accept      string
	Formats     string
	MaxUploadMB int64
}

type uploadResponse struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	StatusURL string `json:"status_url"`
	EventsURL string `json:"events_url"`
}

type stageEvent struct {
	Message string `json:"message"`
}

type captionEvent struct {
	Index int    `json:"index"`
	Line  string `json:"line"`
}

type completeEvent struct {
	Message        string  `json:"message"`
	ProcessingTime float64 `json:"processing_time"`
	Segments       int     `json:"segments"`
	SRTURL         string  `json:"srt_url"`
	PreviewURL     string  `json:"preview_url"`
}

type errorEvent struct {
	Message string `json:"message"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	exts := audio.UploadExtensions()
	formats := make([]string, len(exts))
	for i, ext := range exts {
		formats[i] = strings.ToUpper(strings.TrimPrefix(ext, "."))
	}

	data := pageData{
		Title:       "Automatic Caption Generator",
		ModelName:   s.opts.ModelName,
		Accept:      strings.Join(exts, ","),
		Formats:     strings.Join(formats, ", "),
		MaxUploadMB: s.opts.MaxUploadSize >> 20,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Errorw("Failed to render page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadSize {
		jsonError(w, s.tooLargeMessage(), http.StatusRequestEntityTooLarge)
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, s.tooLargeMessage(), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !audio.IsUploadable(header.Filename) {
		jsonError(w,
			fmt.Sprintf("unsupported file type: accepted types are %s",
				strings.Join(audio.UploadExtensions(), ", ")),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	sess, err := s.store.Create(filepath.Base(header.Filename))
	if err != nil {
		s.logger.Errorw("Failed to create session", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	mediaPath := filepath.Join(sess.dir, "upload"+strings.ToLower(filepath.Ext(header.Filename)))
	if err := saveUpload(file, mediaPath); err != nil {
		s.store.Delete(sess.ID)
		s.logger.Errorw("Failed to save upload", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	s.logger.Infow("File uploaded",
		"session", sess.ID,
		"file", sess.FileName,
		"size", header.Size,
	)

	go s.process(sess, mediaPath)

	base := "/api/transcriptions/" + sess.ID
	jsonResponse(w, uploadResponse{
		ID:        sess.ID,
		Status:    StatusPending,
		StatusURL: base,
		EventsURL: base + "/events",
	}, http.StatusAccepted)
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("file exceeds the %d MB upload limit", s.opts.MaxUploadSize>>20)
}

func saveUpload(src multipart.File, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write upload file: %w", err)
	}
	return dst.Close()
}

// process runs the pipeline for one session in the background.
func (s *Server) process(sess *Session, mediaPath string) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	if !sess.start(cancel) {
		return
	}
	defer os.Remove(mediaPath)

	log := s.logger.With("session", sess.ID)
	start := time.Now()

	result, err := s.runner.Run(ctx, mediaPath, func(stage pipeline.Stage) {
		log.Debugw("Stage", "stage", string(stage))
		sess.addStage(string(stage))
	})

	switch {
	case err != nil && ctx.Err() != nil:
		log.Infow("Processing cancelled")
		sess.stop()
	case err != nil:
		log.Errorw("Processing failed", "error", err)
		sess.fail(errorPrefix + err.Error())
	default:
		log.Infow("Processing complete",
			"segments", len(result.Segments),
			"elapsed", time.Since(start).String(),
		)
		sess.complete(result)
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "transcription not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, _ := sess.Snapshot()
	jsonResponse(w, snap, http.StatusOK)
}

// handleEvents streams stage updates until the session finishes, then
// reveals the caption lines one by one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	sent := 0
	for {
		snap, changed := sess.Snapshot()

		for _, stage := range snap.Stages[sent:] {
			if err := stream.send("stage", stageEvent{Message: stage}); err != nil {
				return
			}
		}
		sent = len(snap.Stages)

		switch snap.Status {
		case StatusCompleted:
			s.streamCaptions(ctx, stream, sess)
			return
		case StatusFailed, StatusCancelled:
			_ = stream.send("error", errorEvent{Message: snap.Error})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-ticker.C:
			if err := stream.keepalive(); err != nil {
				return
			}
		}
	}
}

func (s *Server) streamCaptions(ctx context.Context, stream *eventStream, sess *Session) {
	result := sess.Result()
	if result == nil {
		return
	}

	for i, line := range caption.Reveal(ctx, result.Segments, s.opts.RevealPause) {
		if err := stream.send("caption", captionEvent{Index: i, Line: line}); err != nil {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	base := "/api/transcriptions/" + sess.ID
	seconds := result.ProcessingTime.Seconds()
	_ = stream.send("complete", completeEvent{
		Message:        fmt.Sprintf("Processing complete! (%.2fs)", seconds),
		ProcessingTime: seconds,
		Segments:       len(result.Segments),
		SRTURL:         base + "/srt",
		PreviewURL:     base + "/preview",
	})
}

func (s *Server) handleSRT(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result := sess.Result()
	if result == nil {
		jsonError(w, "transcription is not complete", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="captions.srt"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, subtitle.FormatSRT(result.Segments))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result := sess.Result()
	if result == nil {
		jsonError(w, "transcription is not complete", http.StatusConflict)
		return
	}

	html, err := caption.RenderMarkdown(caption.Lines(result.Segments))
	if err != nil {
		s.logger.Errorw("Failed to render preview", "session", sess.ID, "error", err)
		jsonError(w, "failed to render preview", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Delete(id) {
		jsonError(w, "transcription not found", http.StatusNotFound)
		return
	}
	s.logger.Infow("Session deleted", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}
