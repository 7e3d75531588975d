package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/mselser95/vault-factory/internal/submission"
	"github.com/mselser95/vault-factory/pkg/healthprobe"
	"github.com/mselser95/vault-factory/pkg/types"
	"github.com/mselser95/vault-factory/pkg/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Driver is the factory pipeline as seen by the API.
type Driver interface {
	Options() []types.GaugeOption
	Snapshot() factory.Snapshot
	Select(ctx context.Context, gauge common.Address) error
	SetSession(ctx context.Context, session factory.Session) error
	Submit(ctx context.Context) (submission.Status, error)
	Subscribe(buffer int) (<-chan factory.Event, func())
}

// Catalog serves derived catalog views.
type Catalog interface {
	View(q catalog.Query) catalog.Result
}

// Server provides the API, metrics and health endpoints.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	driver        Driver
	catalog       Catalog
	hub           *websocket.Hub

	defaultNetworks   []uint64
	defaultCategories []string

	// background submissions started by POST /api/vaults
	inflight sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	// Optional components; their routes are mounted only when set.
	Driver  Driver
	Catalog Catalog
	Hub     *websocket.Hub

	// Catalog query defaults applied when a parameter is absent.
	DefaultNetworks   []uint64
	DefaultCategories []string
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	s := &Server{
		logger:            cfg.Logger,
		healthChecker:     cfg.HealthChecker,
		driver:            cfg.Driver,
		catalog:           cfg.Catalog,
		hub:               cfg.Hub,
		defaultNetworks:   cfg.DefaultNetworks,
		defaultCategories: cfg.DefaultCategories,
	}
	if len(s.defaultCategories) == 0 {
		s.defaultCategories = catalog.DefaultCategories()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The event stream is long-lived and stays outside the request timeout.
	if s.hub != nil && s.driver != nil {
		r.Get("/ws", s.handleEvents)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/health", cfg.HealthChecker.Health())
		r.Get("/ready", cfg.HealthChecker.Ready())

		r.Route("/api", func(r chi.Router) {
			if s.driver != nil {
				r.Get("/gauges", s.handleGauges)
				r.Get("/state", s.handleState)
				r.Post("/selection", s.handleSelect)
				r.Post("/session", s.handleSession)
				r.Post("/vaults", s.handleCreateVault)
			}
			if s.catalog != nil {
				r.Get("/vaults", s.handleVaults)
			}
		})
	})

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server, disconnects event stream
// clients and waits for background submissions to settle.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	if s.hub != nil {
		s.hub.Close()
	}

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for submissions: %w", ctx.Err())
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
