package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/bookgest/internal/config"
	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/pipeline"
	"github.com/dgallion1/bookgest/internal/store"
)

// Documents is the read/delete side of the document store.
type Documents interface {
	Get(ctx context.Context, id string) (*doctree.Document, store.Record, error)
	List(ctx context.Context) ([]store.Record, error)
	Delete(ctx context.Context, id string) error
}

// Server is the HTTP API server for bookgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	docs         Documents
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, docs Documents, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		orchestrator: orch,
		docs:         docs,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/convert", s.handleConvert)
		r.Get("/api/convert/{jobID}/status", s.handleConvertStatus)
		r.Post("/api/convert/blocks", s.handleConvertBlocks)
		r.Get("/api/stats/convert", s.handleConvertStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
