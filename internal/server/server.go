package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/config"
	previewhttp "github.com/GriffinCanCode/AgentOS/preview/internal/http"
	"github.com/GriffinCanCode/AgentOS/preview/internal/logging"
	"github.com/GriffinCanCode/AgentOS/preview/internal/middleware"
	"github.com/GriffinCanCode/AgentOS/preview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
	"github.com/GriffinCanCode/AgentOS/preview/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	handler  http.Handler
	engine   *preview.Engine
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	live     *ws.Handler
	http     *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing preview server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("debounce", cfg.Preview.Debounce),
		zap.Duration("timeout", cfg.Preview.Timeout),
		zap.Bool("sanitize", cfg.Preview.Sanitize),
	)

	// Each server owns its registry so tests can build several.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	engine := preview.NewEngine(cfg.Preview.Engine(), preview.DefaultTable(), logger.Component("engine"), metrics)
	sanitizer := sanitize.New(cfg.Preview.Sanitize)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := previewhttp.NewHandlers(engine, sanitizer, metrics, logger.Component("api"), previewhttp.Options{
		MaxSourceBytes: cfg.Preview.MaxSourceBytes,
		Height:         cfg.Preview.Height,
	})
	live := ws.NewHandler(engine, ws.Options{
		Host:           cfg.Preview.Host(),
		MaxSourceBytes: cfg.Preview.MaxSourceBytes,
	}, sanitizer, metrics, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	api := router.Group("/api")
	api.GET("/modules", handlers.ListModules)
	api.GET("/stats", handlers.Stats)

	// Evaluation is CPU bound, so it also gets one bucket shared by every
	// client.
	evaluate := api.Group("")
	if rps := cfg.RateLimit.EvaluateRPS; cfg.RateLimit.Enabled && rps > 0 {
		logger.Info("Evaluation rate limit enabled", zap.Int("rps", rps))
		evaluate.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{RequestsPerSecond: rps, Burst: rps}))
	}
	evaluate.POST("/preview", handlers.Preview)
	evaluate.POST("/transpile", handlers.Transpile)

	api.GET("/live", live.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{DisableCompression: true})))

	handler, err := compress(router)
	if err != nil {
		return nil, fmt.Errorf("failed to configure compression: %w", err)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		handler:  handler,
		engine:   engine,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
		live:     live,
	}, nil
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run serves HTTP until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.http.RegisterOnShutdown(s.live.CloseAll)
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := s.http.Shutdown(ctx); serr != nil {
			s.logger.Error("Graceful shutdown failed", zap.Error(serr))
			err = fmt.Errorf("failed to shut down http server: %w", serr)
		}
	}

	_ = s.logger.Sync()
	return err
}
