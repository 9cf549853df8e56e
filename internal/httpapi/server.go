package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Diagnoser explains why a probe got no HTTP response.
type Diagnoser interface {
	Diagnose(ctx context.Context, rawURL string) string
}

type Server struct {
	Logger       *zap.Logger
	Store        repo.Store
	Prober       probe.Prober
	DNS          Diagnoser // optional
	Metrics      *metrics.Metrics
	ProbeTimeout time.Duration
}

// Options tune the router's outer middleware.
type Options struct {
	AllowedOrigins []string
	RateLimitRPM   int // 0 disables limiting
	RateLimitBurst int
}

func NewServer(l *zap.Logger, store repo.Store, p probe.Prober, m *metrics.Metrics, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	return &Server{Logger: l, Store: store, Prober: p, Metrics: m, ProbeTimeout: timeout}
}

func (s *Server) Router(opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.AccessLog(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(opts.RateLimitRPM, opts.RateLimitBurst))

		r.Route("/sites", func(r chi.Router) {
			r.Post("/", s.handleAddSite)
			r.Get("/", s.handleListSites)
			r.Get("/{id}", s.handleGetSite)
			r.Delete("/{id}", s.handleDeleteSite)
		})
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/history/{id}", s.handleHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method Not Allowed"})
	})
	return r
}
