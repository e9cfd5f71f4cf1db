// Package server is the web front end: upload a media file, follow its
// progress over server-sent events, and download the captions.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mgpai22/vidsrt/internal/caption"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/transcribe"
)

//go:embed web/index.html
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

const (
	shutdownTimeout   = 10 * time.Second
	keepaliveInterval = 30 * time.Second
	// parts above this size are spooled to disk by mime/multipart
	multipartMemory = 32 << 20
)

// Runner processes one media file. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, mediaPath string, progress func(pipeline.Stage)) (*transcribe.Result, error)
}

type Options struct {
	Addr          string
	MaxUploadSize int64
	CORSOrigins   []string
	TempDir       string
	RevealPause   time.Duration
	// shown under the page title
	ModelName string
}

type Server struct {
	opts   Options
	runner Runner
	store  *Store
	logger *logging.Logger
	router http.Handler

	// parent of every pipeline and request context
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func New(opts Options, runner Runner, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.RevealPause < 0 {
		opts.RevealPause = caption.DefaultPause
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		runner:     runner,
		store:      NewStore(opts.TempDir),
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(corsOptions(s.opts.CORSOrigins)))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api/transcriptions", func(r chi.Router) {
		r.With(maxBodySize(s.opts.MaxUploadSize)).Post("/", s.handleUpload)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Get("/events", s.handleEvents)
			r.Get("/srt", s.handleSRT)
			r.Get("/preview", s.handlePreview)
			r.Delete("/", s.handleDelete)
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

// ListenAndServe serves until ctx is cancelled, then cancels running
// pipelines and shuts the listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Infow("Server listening", "addr", s.opts.Addr)

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down server")
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Close cancels all pipelines and open streams and removes uploads.
func (s *Server) Close() {
	s.cancelBase()
	s.store.Close()
}
