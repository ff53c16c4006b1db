package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/healthingest/internal/ingest"
	"github.com/claude/healthingest/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes caps upload bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 20

// Ingester runs one upload body through the pipeline. *hae.Provider
// implements it.
type Ingester interface {
	Ingest(ctx context.Context, kind ingest.Kind, body map[string]any) (*ingest.Result, error)
}

// Pinger reports database liveness. *storage.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	ingester     Ingester
	db           Pinger
	log          *slog.Logger
	maxBodyBytes int64
	router       chi.Router
}

// New creates a new Server with all routes configured.
func New(ingester Ingester, db Pinger, maxBodyBytes int64, log *slog.Logger) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		ingester:     ingester,
		db:           db,
		log:          log,
		maxBodyBytes: maxBodyBytes,
		router:       chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics)
	s.router.Use(CORS)

	s.router.Post("/upload", s.handleUpload(ingest.KindMetrics, "Health data uploaded successfully!"))
	s.router.Post("/upload/workouts", s.handleUpload(ingest.KindWorkouts, "Workouts data uploaded successfully!"))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())
}
