// Package api exposes the narration pipeline and the article catalogue
// over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/metadata"
	"github.com/hyperifyio/speakloud/internal/observe"
	"github.com/hyperifyio/speakloud/internal/pipeline"
)

// Service is the part of the pipeline the API drives.
type Service interface {
	Process(ctx context.Context, url string, hashtags []string, voiceName string) (pipeline.Result, error)
	ProcessBatch(ctx context.Context, urls []string, hashtags []string, voiceName string) []pipeline.Report
	Preview(ctx context.Context, url string) (article.Summary, error)
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	svc     Service
	store   metadata.Store
	metrics *observe.Metrics

	metricsHandler http.Handler
}

// NewServer creates and configures the HTTP server.
func NewServer(svc Service, store metadata.Store, m *observe.Metrics) *Server {
	s := &Server{svc: svc, store: store, metrics: m, metricsHandler: promhttp.Handler()}
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
	r.Use(RequestLogger(s.metrics))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler)

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleProcess)
		r.Post("/batch", s.handleBatch)
		r.Get("/preview", s.handlePreview)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
		r.Put("/{id}/hashtags", s.handleUpdateHashtags)
		r.Get("/{id}/listens", s.handleListenCount)
		r.Post("/{id}/listens", s.handleLogListen)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		jsonError(w, "metadata store unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
