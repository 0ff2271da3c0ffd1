// Package server provides the HTTP API for Pustaka.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/ingest"
	"github.com/pustakalab/pustaka/internal/llm"
	"github.com/pustakalab/pustaka/internal/rag"
	"github.com/pustakalab/pustaka/internal/storage"
)

// maxUploadBytes caps PDF uploads at 20MB.
const maxUploadBytes = 20 << 20

// ModelLister lists the chat models available on the provider.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// Server is the HTTP server for the Pustaka API.
type Server struct {
	assistant *rag.Assistant
	pipeline  *ingest.Pipeline
	storage   storage.Storage
	models    ModelLister
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	assistant *rag.Assistant,
	pipeline *ingest.Pipeline,
	store storage.Storage,
	models ModelLister,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		assistant: assistant,
		pipeline:  pipeline,
		storage:   store,
		models:    models,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/chat", s.handleChat)
	r.Post("/api/v1/chat/ask", s.handleChatAsk)

	r.Get("/api/v1/books", s.handleListBooks)
	r.Get("/api/v1/books/{id}", s.handleGetBook)
	r.Post("/api/v1/books", s.handleCreateBook)
	r.Post("/api/v1/books/{id}/ingest", s.handleIngestBook)
	r.Post("/api/v1/books/reingest", s.handleReingestBooks)

	r.Post("/api/v1/documents", s.handleUploadDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Post("/api/v1/documents/{id}/ingest", s.handleIngestDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)

	r.Get("/api/v1/models", s.handleListModels)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
