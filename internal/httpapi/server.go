package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"solstice/internal/model"
	"solstice/internal/observability/jsonlog"
)

const apiPrefix = "/api/v1"

// TaskService is what the handlers need from the task layer.
type TaskService interface {
	Create(ctx context.Context, title string) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id uuid.UUID) (model.Task, error)
	Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	// RequestTimeout bounds each request's context. Zero disables it.
	RequestTimeout time.Duration
	// AllowedOrigins lists CORS origins; "*" allows any. Empty disables CORS.
	AllowedOrigins []string
	// Metrics receives request metrics and is served at /metrics.
	// NewServer creates one when nil.
	Metrics *Metrics
}

type Server struct {
	service TaskService
	store   Pinger
	logger  *jsonlog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(service TaskService, store Pinger, logger *jsonlog.Logger, opts Options) *Server {
	if logger == nil {
		logger = jsonlog.Discard()
	}
	srv := &Server{
		service: service,
		store:   store,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	srv.mux.HandleFunc("GET "+apiPrefix+"/health", srv.handleHealth)

	srv.mux.HandleFunc("GET "+apiPrefix+"/tasks", srv.handleListTasks)
	srv.mux.HandleFunc("POST "+apiPrefix+"/tasks", srv.handleCreateTask)
	srv.mux.HandleFunc("GET "+apiPrefix+"/tasks/{id}", srv.handleGetTask)
	srv.mux.HandleFunc("PATCH "+apiPrefix+"/tasks/{id}", srv.handlePatchTask)
	srv.mux.HandleFunc("DELETE "+apiPrefix+"/tasks/{id}", srv.handleDeleteTask)

	if store != nil {
		srv.mux.HandleFunc("GET /readyz", srv.handleReady)
	}
	srv.mux.HandleFunc("GET /api-docs/openapi.json", handleOpenAPI)
	srv.mux.HandleFunc("GET /docs", handleDocs)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	srv.mux.Handle("GET /metrics", metrics.Handler())

	var h http.Handler = srv.mux
	h = Instrument(metrics)(h)
	h = Timeout(opts.RequestTimeout)(h)
	h = CORS(opts.AllowedOrigins)(h)
	h = Logging(logger)(h)
	h = WithRequestID()(h)
	srv.handler = h

	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
