// Package api exposes feature extraction and play feeds over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/tackle/internal/adapters/http/swagger"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/playfeed"
	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/logger"
)

// Default server configuration.
const (
	defaultStreamInterval = 100 * time.Millisecond
	defaultMaxBatchSize   = 10000
)

// Extractor computes features for events.
type Extractor interface {
	Extract(ctx context.Context, event model.TackleEvent) (model.FeatureVector, error)
	ExtractBatch(ctx context.Context, events []model.TackleEvent) (types.BatchResult, error)
}

// PlayFeeds builds annotated play feeds.
type PlayFeeds interface {
	Feed(ctx context.Context, gameID, playID, tacklerID int64) (playfeed.Feed, error)
}

// Server wires HTTP routes for the tackle API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	featuresHandler *FeaturesHandler
	playsHandler    *PlaysHandler

	corsOrigins    []string
	streamInterval time.Duration
	maxBatchSize   int
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithStreamInterval sets the default delay between streamed frames.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// WithMaxBatchSize limits the number of events per batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers. plays may be nil,
// in which case the play routes answer 503.
func NewServer(extractor Extractor, plays PlayFeeds, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		streamInterval: defaultStreamInterval,
		maxBatchSize:   defaultMaxBatchSize,
		logger:         logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider, plays)
	s.featuresHandler = NewFeaturesHandler(extractor, s.maxBatchSize)
	s.playsHandler = NewPlaysHandler(plays, s.streamInterval, s.logger)
	return s
}

// Handler returns a router with every route and the shared middleware.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(ctx context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Post("/features", MetricsMiddleware(s.featuresHandler.HandlePostFeatures, "features"))
	r.Post("/features/batch", MetricsMiddleware(s.featuresHandler.HandlePostBatch, "features_batch"))
	r.Get("/plays/{gameID}/{playID}", MetricsMiddleware(s.playsHandler.HandleGetPlay, "plays"))
	r.Get("/plays/{gameID}/{playID}/stream", MetricsMiddleware(s.playsHandler.HandleStreamPlay, "plays_stream"))
	swagger.Register(ctx, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
