package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/0xhank/casper/internal/api/http"
	"github.com/0xhank/casper/internal/api/middleware"
	"github.com/0xhank/casper/internal/api/ws"
	"github.com/0xhank/casper/internal/bridge"
	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/config"
	"github.com/0xhank/casper/internal/infrastructure/logging"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/infrastructure/tracing"
	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shell"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	sessions *shell.Manager
	bridge   *bridge.Bridge
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// New assembles the full service: model client, tool broker, pipeline,
// session shell, bridge, and the HTTP/WebSocket surface.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing Casper generation service",
		zap.String("port", cfg.Server.Port),
		zap.String("model", cfg.Model.Model),
		zap.String("mini_model", cfg.Model.MiniModel),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("casper", logger.Logger)

	modelClient := llm.NewOpenAI(llm.Config{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
	}, metrics, logger.Logger)

	toolBroker := broker.NewComposio(cfg.Broker, metrics, logger.Logger)
	catalog, err := broker.LoadCatalog(cfg.Broker.CatalogPath)
	if err != nil {
		logger.Warn("Falling back to built-in tool catalog", zap.Error(err))
		catalog = broker.DefaultCatalog()
	}

	classifier := pipeline.NewClassifier(modelClient, cfg.Model.MiniModel, logger.Logger)
	planner := pipeline.NewPlanner(modelClient, cfg.Model.MiniModel, logger.Logger)
	fetcher := pipeline.NewFetcher(modelClient, toolBroker, catalog, cfg.Model.MiniModel, logger.Logger)
	generator := pipeline.NewGenerator(modelClient, cfg.Model.Model, logger.Logger)
	pipe := pipeline.New(classifier, planner, fetcher, generator, modelClient, cfg.Model.MiniModel, metrics, tracer, logger.Logger)

	sessions := shell.NewManager(pipe, metrics, logger.Logger)
	mounts := bridge.New(metrics, logger.Logger)
	hub := ws.NewHub(sessions, metrics, logger.Logger)
	handlers := apihttp.NewHandlers(sessions, toolBroker, catalog, mounts, hub, metrics, logger.Logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	router.Use(middleware.Identity(cfg.Auth, cfg.Broker.EntityID))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.POST("/generate", handlers.Generate)
	api.GET("/preview", handlers.Preview)
	api.GET("/connections", handlers.ListConnections)
	api.POST("/connect/:toolId", handlers.ConnectTool)

	router.GET("/stream", hub.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		sessions: sessions,
		bridge:   mounts,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Router exposes the gin engine, primarily for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			return err
		}
	}

	s.logger.Sync()
	return nil
}
