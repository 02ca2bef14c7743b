// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/pkg/logger"
)

const defaultRequestTimeout = 2 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ZScore scores the patient's measurement for attribute.
	ZScore(ctx context.Context, patient model.Patient, attribute model.Attribute) (model.ZScoreResult, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRequestTimeout bounds each scoring request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDebugResponses adds request diagnostics to /zscore bodies.
func WithDebugResponses(on bool) Option {
	return func(s *Server) {
		s.debug = on
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	timeout time.Duration
	debug   bool
	logger  logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	zscoreHandler *ZScoreHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		timeout: defaultRequestTimeout,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.zscoreHandler = NewZScoreHandler(deps, s.timeout, s.debug, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/zscore", MetricsMiddleware(s.zscoreHandler.HandleZScore, "zscore"))

	s.logger.Debug(ctx, "api routes registered",
		logger.String("timeout", s.timeout.String()),
		logger.Any("debug_responses", s.debug),
	)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
