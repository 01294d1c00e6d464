package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/eventstore"
	"git.home.luguber.info/inful/deploybuilder/internal/git"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/retry"
	"git.home.luguber.info/inful/deploybuilder/internal/workspace"
)

// PipelineRunner runs one build and stage.
type PipelineRunner interface {
	Run(ctx context.Context, projectRoot, deployTarget string) (*pipeline.Report, error)
}

// CloneFunc materializes src inside dir and returns the checkout path.
type CloneFunc func(ctx context.Context, src git.Source, dir string) (string, error)

// Server is the deploy HTTP service.
type Server struct {
	cfg        config.ServerConfig
	runner     PipelineRunner
	queue      *Queue
	hub        *Hub
	sink       events.Sink
	store      eventstore.Store
	workspaces *workspace.Manager
	clone      CloneFunc
	locks      siteLocks
	recorder   metrics.Recorder
	metrics    http.Handler
	errs       *derrors.HTTPErrorAdapter
	logger     *slog.Logger
	newID      func() string
	sitesDir   string
	streamIdle time.Duration
	started    time.Time
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithHub sets the live event hub. The pipeline's sink should include it.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithSink sets the sink for events the server emits itself, such as clone results.
func WithSink(sink events.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithStore enables GET /api/deploys/{id}/events and event retention.
func WithStore(store eventstore.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithRecorder attaches a metrics recorder for queue depth.
func WithRecorder(rec metrics.Recorder) Option {
	return func(s *Server) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCloneFunc replaces git cloning.
func WithCloneFunc(fn CloneFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.clone = fn
		}
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the data directories under cfg.DataDir and wires the routes.
// Workers start with Run.
func New(cfg config.ServerConfig, runner PipelineRunner, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("server: pipeline runner is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.DefaultMaxUpload
	}

	s := &Server{
		cfg:        cfg,
		runner:     runner,
		hub:        NewHub(),
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		newID:      uuid.NewString,
		sitesDir:   filepath.Join(cfg.DataDir, "sites"),
		streamIdle: time.Minute,
		workspaces: workspace.NewManager(filepath.Join(cfg.DataDir, "work")),
	}
	policy := retry.ForClone(cfg)
	s.clone = func(ctx context.Context, src git.Source, dir string) (string, error) {
		return git.NewClient(dir).WithRetryPolicy(policy).Clone(ctx, src, "repo")
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = s.hub
	}
	s.errs = derrors.NewHTTPErrorAdapter(s.logger)

	for _, dir := range []string{s.sitesDir, s.workspaces.BaseDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, derrors.WorkspaceError("create data directory", err).WithContext("path", dir)
		}
	}

	s.queue = NewQueue(cfg.QueueSize, cfg.Workers, s.process, s.recorder)
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Queue exposes the job queue.
func (s *Server) Queue() *Queue { return s.queue }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger, s.errs))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/deploys", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/events", s.handleEvents)
		r.Get("/{id}/stream", s.handleStream)
	})

	r.Get("/sites/{site}", s.handleSiteRedirect)
	r.Get("/sites/{site}/*", s.handleSite)
	return r
}

// Run serves HTTP on cfg.Listen and processes jobs until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.started = time.Now()
	s.queue.Start(ctx)
	defer s.queue.Stop()

	stopRetention, err := s.startRetention(ctx)
	if err != nil {
		return err
	}
	defer stopRetention()

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Deploy server listening", slog.String("addr", s.cfg.Listen), logfields.Path(s.cfg.DataDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	slog.Info("Shutting down deploy server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// process runs inside a queue worker.
func (s *Server) process(ctx context.Context, job *Job) (*pipeline.Report, error) {
	unlock := s.locks.lock(job.Site)
	defer unlock()

	ctx = events.ContextWithRunID(ctx, job.ID)
	if job.ws != nil {
		defer func() {
			if err := job.ws.Cleanup(); err != nil {
				slog.Warn("Failed to remove job workspace", logfields.JobID(job.ID), logfields.Error(err))
			}
		}()
	}

	projectDir := job.projectDir
	if job.repo != nil {
		dir, err := s.clone(ctx, *job.repo, job.ws.Path())
		if err != nil {
			s.sink.Emit(ctx, events.New(events.RunFailed, events.LevelError, "Repository clone failed",
				logfields.URL(job.repo.URL), logfields.Error(err)))
			return nil, err
		}
		// Repository metadata must never be staged as site content.
		if err := git.StripMetadata(dir); err != nil {
			return nil, derrors.WorkspaceError("remove repository metadata", err)
		}
		// Links leaving the checkout would be served from the host filesystem.
		removed, err := git.RemoveExternalLinks(dir)
		if err != nil {
			return nil, derrors.WorkspaceError("remove external links", err)
		}
		if len(removed) > 0 {
			s.sink.Emit(ctx, events.New(events.LinksRemoved, events.LevelWarn,
				fmt.Sprintf("Removed %d symlinks pointing outside the repository: %s", len(removed), strings.Join(removed, ", ")),
				logfields.URL(job.repo.URL)))
		}
		s.sink.Emit(ctx, events.New(events.SourceCloned, events.LevelInfo, "Repository cloned",
			logfields.URL(job.repo.URL), logfields.Path(dir)))
		projectDir = dir
	}

	return s.runner.Run(ctx, projectDir, filepath.Join(s.sitesDir, job.Site))
}
