package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"triaged/internal/chat"
	"triaged/internal/session"
	"triaged/pkg/types"
)

// Engine defines the model operations required by the HTTP API layer.
type Engine interface {
	Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, error)
	Load(ctx context.Context, s types.Settings) error
	Settings() types.Settings
	Status() types.StatusResponse
	ListModels() []types.Model
	Ready() bool
}

// Sessions is the conversation store used by the session routes.
// *session.Store satisfies it.
type Sessions interface {
	Create() (*session.Session, error)
	Import(msgs []types.Message) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
	Len() int
}

// NewMux wires the HTTP routes for eng and sessions.
func NewMux(eng Engine, sessions Sessions) http.Handler {
	s := &server{eng: eng, sessions: sessions}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/info", s.handleInfo)
	r.Get("/settings", s.handleSettings)
	r.Post("/model/reload", s.handleReload)
	r.Get("/models", s.handleModels)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Post("/import", s.handleImportSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/messages", s.handleMessage)
			r.Post("/reset", s.handleReset)
			r.Get("/export", s.handleExport)
		})
	})

	r.Get("/status", s.handleStatus)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if eng.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type server struct {
	eng      Engine
	sessions Sessions
}
