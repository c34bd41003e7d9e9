// Package server provides the HTTP API for docsink.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docsink/internal/config"
	"github.com/hyperjump/docsink/internal/ingest"
	"github.com/hyperjump/docsink/internal/storage"
)

// Pipeline is the slice of the ingestion pipeline the API drives.
type Pipeline interface {
	IngestFileForced(ctx context.Context, path string) (*ingest.Outcome, error)
	DeleteDocument(ctx context.Context, id string) error
}

// WatchService reports live watch state for the status endpoint.
type WatchService interface {
	Directories() []string
}

// QueueStats reports work queue depth for the status endpoint.
type QueueStats interface {
	Pending() int
}

// Server is the HTTP server for the docsink API.
type Server struct {
	store    storage.Store
	pipeline Pipeline
	cfg      *config.Config
	logger   *zap.Logger
	watch    WatchService // optional; nil when running without a watcher
	queue    QueueStats   // optional
	server   *http.Server
}

// NewServer creates a server with the given dependencies. watch and queue
// may be nil when the API runs without the watch daemon.
func NewServer(
	store storage.Store,
	pipeline Pipeline,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	queue QueueStats,
) *Server {
	return &Server{
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		watch:    watch,
		queue:    queue,
	}
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/documents/{id}/logs", s.handleDocumentLogs)
	r.Get("/api/v1/documents/{id}/images", s.handleDocumentImages)
	r.Post("/api/v1/ingest", s.handleIngest)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
