// Package api provides the HTTP REST surface over the workflow engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/events"
	"github.com/modelops/cardflow/internal/logging"
	"github.com/modelops/cardflow/internal/service/workflow"
)

// Server exposes workflow CRUD, execution, and tool-server status over HTTP.
type Server struct {
	router    chi.Router
	workflows *workflow.Service
	tools     core.ToolServerMonitor
	bus       *events.Bus
	logger    *logging.Logger
	noCORS    bool
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithToolMonitor wires the tool-server status endpoints.
func WithToolMonitor(monitor core.ToolServerMonitor) ServerOption {
	return func(s *Server) {
		s.tools = monitor
	}
}

// WithoutCORS disables the permissive CORS layer, for deployments where a
// proxy terminates browser traffic.
func WithoutCORS() ServerOption {
	return func(s *Server) {
		s.noCORS = true
	}
}

// NewServer creates the API server.
func NewServer(workflows *workflow.Service, bus *events.Bus, opts ...ServerOption) *Server {
	s := &Server{
		workflows: workflows,
		bus:       bus,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	if !s.noCORS {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)

			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Put("/", s.handleUpdateWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)

				r.Post("/execute", s.handleExecuteWorkflow)

				r.Route("/cards", func(r chi.Router) {
					r.Post("/", s.handleAddCard)
					r.Delete("/{cardID}", s.handleRemoveCard)
				})

				r.Route("/connections", func(r chi.Router) {
					r.Post("/", s.handleAddConnection)
					r.Post("/validate", s.handleValidateConnection)
					r.Delete("/{connectionID}", s.handleRemoveConnection)
				})
			})
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/current", s.handleCurrentExecution)
			r.Get("/current/steps", s.handleIntermediateResults)
			r.Get("/history", s.handleExecutionHistory)
			r.Get("/status", s.handleExecutionStatus)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.handleListToolServers)
			r.Post("/poll", s.handlePollToolServers)
		})

		r.Get("/events", s.handleSSE)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
