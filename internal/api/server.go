// Package api exposes the assessment engine, stored results and leads over
// HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/leads"
	"github.com/sells-group/compliance-cli/internal/store"
)

// maxBodyBytes caps submission request bodies.
const maxBodyBytes = 1 << 20

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	engine   *engine.Engine
	registry *bank.Registry
	store    store.Store
	syncer   *leads.Syncer
	metrics  *Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables best-effort Salesforce sync of new leads.
func WithSyncer(s *leads.Syncer) Option {
	return func(srv *Server) {
		srv.syncer = s
	}
}

// WithMetrics replaces the default metrics registry.
func WithMetrics(m *Metrics) Option {
	return func(srv *Server) {
		srv.metrics = m
	}
}

// NewServer creates a Server.
func NewServer(e *engine.Engine, reg *bank.Registry, st store.Store, opts ...Option) *Server {
	s := &Server{
		engine:   e,
		registry: reg,
		store:    st,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Handler builds the router. An empty origins list allows any origin.
func (s *Server) Handler(corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.listQuestions)
		r.Get("/questions/{id}", s.getQuestion)

		r.Post("/assessments", s.submitAssessment)
		r.Get("/assessments", s.listAssessments)
		r.Get("/assessments/{id}", s.getAssessment)

		r.Get("/leads", s.listLeads)
		r.Get("/leads/export", s.exportLeads)
		r.Get("/leads/{id}", s.getLead)
		r.Patch("/leads/{id}", s.updateLead)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels to status codes and hides other
// failures behind a 500.
func writeStoreError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	default:
		zap.L().Error("api: "+action, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok"}
	if b := s.registry.Current(); b != nil {
		resp["bank_version"] = b.Version()
	}
	writeJSON(w, http.StatusOK, resp)
}
