// Package server exposes the LyricsBeats HTTP API: project management,
// audio upload, transform jobs with SSE progress, lyrics generation and
// artifact downloads.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bcatacb/LyricsBeats/internal/config"
	"github.com/bcatacb/LyricsBeats/internal/pipeline"
	"github.com/bcatacb/LyricsBeats/internal/store"
	"github.com/bcatacb/LyricsBeats/internal/workspace"
)

const apiVersion = "2.0"

// Store is the persistence surface the handlers depend on
type Store interface {
	CreateProject(ctx context.Context, p *store.Project) error
	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProject(ctx context.Context, id string) (*store.Project, error)
	UpdateProject(ctx context.Context, id string, update store.ProjectUpdate) error
	CreateStatusCheck(ctx context.Context, check *store.StatusCheck) error
	ListStatusChecks(ctx context.Context) ([]store.StatusCheck, error)
	CreateUserStyle(ctx context.Context, style *store.UserStyle) error
	ListUserStyles(ctx context.Context) ([]store.UserStyle, error)
	GetUserStyle(ctx context.Context, id string) (*store.UserStyle, error)
	DeleteUserStyle(ctx context.Context, id string) error
}

// LyricsGenerator produces lyrics text from a prompt
type LyricsGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Server is the HTTP server
type Server struct {
	config *config.Config
	router *chi.Mux
	logger *slog.Logger
	store  Store
	ws     *workspace.Workspace
	jobs   *JobManager
	lyrics LyricsGenerator
}

// New creates a server wired to the given store and lyrics generator
func New(cfg *config.Config, st Store, ws *workspace.Workspace, p *pipeline.Pipeline, lg LyricsGenerator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		store:  st,
		ws:     ws,
		jobs:   NewJobManager(p, st, ws, logger),
		lyrics: lg,
	}

	s.setupRoutes()
	return s
}

// Router returns the HTTP handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)

		r.Post("/status", s.handleCreateStatusCheck)
		r.Get("/status", s.handleListStatusChecks)

		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Post("/projects/{id}/upload", s.handleUpload)
		r.Post("/projects/{id}/transform", s.handleTransform)
		r.Post("/projects/{id}/generate-lyrics", s.handleGenerateLyrics)
		r.Get("/projects/{id}/download-stems", s.handleDownloadStems)
		r.Get("/projects/{id}/download-lyrics", s.handleDownloadLyrics)
		r.Get("/projects/{id}/export", s.handleExportProject)

		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/events", s.handleJobEvents)

		r.Post("/user-styles", s.handleCreateUserStyle)
		r.Get("/user-styles", s.handleListUserStyles)
		r.Delete("/user-styles/{id}", s.handleDeleteUserStyle)

		r.Get("/files/{filename}", s.handleServeFile)
	})
}

// Run starts the server and blocks until shutdown
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // long for SSE and large downloads
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}
