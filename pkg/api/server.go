// Package api serves the filesystem routes and the instance entry point over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartpc/smartpc/internal/instance"
	"github.com/smartpc/smartpc/internal/metrics"
	"github.com/smartpc/smartpc/internal/vfs"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/types"
)

// Server answers the filesystem routes, the /instance dispatcher and the
// operational endpoints.
type Server struct {
	httpServer *http.Server
	handler    http.Handler

	files     *vfs.Service
	instances *instance.Orchestrator
	identity  types.IdentityDecoder
	health    *health.Tracker
	metrics   *metrics.Collector

	validate *validator.Validate
	config   ServerConfig
	logger   *slog.Logger
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS adds the CORS headers to every response
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`

	// AllowedOrigin is echoed in Access-Control-Allow-Origin; empty means "*"
	AllowedOrigin string `yaml:"allowed_origin" json:"allowed_origin"`

	// MetricsPath exposes the Prometheus registry when metrics are enabled
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       "localhost:8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		IdleTimeout:   120 * time.Second,
		EnableCORS:    true,
		AllowedOrigin: "*",
		MetricsPath:   "/metrics",
	}
}

// Deps are the collaborators a Server dispatches to. Health and Metrics may
// be nil.
type Deps struct {
	Files     *vfs.Service
	Instances *instance.Orchestrator
	Identity  types.IdentityDecoder
	Health    *health.Tracker
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "*"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		files:     deps.Files,
		instances: deps.Instances,
		identity:  deps.Identity,
		health:    deps.Health,
		metrics:   deps.Metrics,
		validate:  newValidator(),
		config:    config,
		logger:    logger.With("component", "api"),
	}

	mux := http.NewServeMux()

	// Filesystem
	mux.HandleFunc("POST /upload", s.route(s.handleUpload))
	mux.HandleFunc("GET /download", s.route(s.handleDownload))
	mux.HandleFunc("GET /list", s.route(s.handleList))
	mux.HandleFunc("GET /list-hierarchy", s.route(s.handleHierarchy))
	mux.HandleFunc("DELETE /delete", s.route(s.handleDelete))
	mux.HandleFunc("POST /delete-multiple", s.route(s.handleDeleteMultiple))
	mux.HandleFunc("POST /create-folder", s.route(s.handleCreateFolder))
	mux.HandleFunc("POST /star", s.route(s.handleStar(true)))
	mux.HandleFunc("POST /unstar", s.route(s.handleStar(false)))
	mux.HandleFunc("POST /share", s.route(s.handleShare))
	mux.HandleFunc("POST /share-multiple", s.route(s.handleShareMultiple))
	mux.HandleFunc("POST /move", s.route(s.handleTransfer(true)))
	mux.HandleFunc("POST /copy", s.route(s.handleTransfer(false)))
	mux.HandleFunc("GET /usage", s.route(s.handleUsage))
	mux.HandleFunc("GET /download-folder", s.route(s.handleDownloadFolder))

	// Instances
	mux.HandleFunc("POST /instance", s.route(s.handleInstance))
	mux.HandleFunc("OPTIONS /instance", s.handlePreflight)
	mux.HandleFunc("GET /instances", s.route(s.handleListInstances))

	// Operations
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics.Enabled() {
		mux.Handle("GET "+config.MetricsPath, s.metrics.Handler())
	}

	mux.HandleFunc("/", s.handleUnknown)

	var handler http.Handler = mux
	handler = s.recoverMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a background goroutine
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return lowerFirst(f.Name)
		}
		return name
	})
	return v
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"note":   "Health tracking not configured",
		})
		return
	}

	overall := s.health.GetOverallHealth()
	statusCode := http.StatusOK
	if overall == health.StateUnavailable {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, map[string]interface{}{
		"status":     overall.String(),
		"timestamp":  time.Now().UTC(),
		"components": s.health.Components(),
	})
}
