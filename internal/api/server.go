// Package api provides the HTTP server: GraphQL over POST and websocket,
// plus health and metrics endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/metrics"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store"
)

// maxBodyBytes caps GraphQL request bodies.
const maxBodyBytes = 1 << 20

// SubscriberCounter reports live subscriptions.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Config holds the server's dependencies.
type Config struct {
	Schema      *graphql.Schema
	Auth        *service.AuthService
	Store       store.Store
	Subscribers SubscriberCounter
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Version     string
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	schema      *graphql.Schema
	auth        *service.AuthService
	store       store.Store
	subscribers SubscriberCounter
	metrics     *metrics.Metrics
	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		schema:      cfg.Schema,
		auth:        cfg.Auth,
		store:       cfg.Store,
		subscribers: cfg.Subscribers,
		metrics:     cfg.Metrics,
		router:      chi.NewRouter(),
		logger:      logger,
	}

	s.setupMiddleware(cfg.CORSOrigins)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s.api = humachi.New(s.router, huma.DefaultConfig("Library Catalog", version))

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(clientAddr)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		s.router.Use(s.observe)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	gql := s.graphqlHandler()
	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Handle("/graphql", gql)
		r.Handle("/", gql)
	})
}
