package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptar/promptar/api/handlers"
	"github.com/promptar/promptar/config"
	"github.com/promptar/promptar/generation"
	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/internal/audit"
	"github.com/promptar/promptar/internal/metrics"
	"github.com/promptar/promptar/internal/ratelimit"
	"github.com/promptar/promptar/internal/server"
	"github.com/promptar/promptar/registry"
)

// Server wires the service together and owns its lifecycle.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector    *metrics.Collector
	pool         *inference.Pool
	store        *registry.Store
	orchestrator *generation.Orchestrator
	cleaner      *generation.Cleaner
	auditStore   *audit.Store
	limiter      ratelimit.Limiter
	redisClient  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start brings up every component. Backend initialization happens here
// and may take a while when remote services are cold.
func (s *Server) Start(ctx context.Context) error {
	s.collector = metrics.NewCollector("promptar", s.logger)
	s.store = registry.NewStore()

	s.initAudit()
	s.initLimiter()

	s.pool = inference.NewPool(ctx, s.cfg.Inference, s.logger, s.collector.RecordBackendInitFailure)
	s.logger.Info("backend pool ready", zap.Strings("backends", s.pool.Available()))

	s.orchestrator = generation.New(s.pool, s.store, s.cfg.Generation, s.collector, s.logger)
	s.cleaner = generation.NewCleaner(s.collector.RecordCleanup, s.logger)

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	if err := s.startMetricsServer(); err != nil {
		return err
	}

	s.logger.Info("all servers started",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.MetricsAddr),
		zap.Bool("ephemeral_storage", s.cfg.Storage.Ephemeral),
	)
	return nil
}

// initAudit opens the audit store. Failure disables auditing but never
// aborts startup.
func (s *Server) initAudit() {
	store, err := audit.Open(s.cfg.Audit, s.logger)
	if err != nil {
		s.logger.Warn("audit store unavailable, auditing disabled", zap.Error(err))
		return
	}
	s.auditStore = store
}

// initLimiter picks the Redis limiter when an address is configured,
// otherwise limits in process.
func (s *Server) initLimiter() {
	if !s.cfg.RateLimit.Enabled {
		return
	}
	if s.cfg.RateLimit.RedisAddr != "" {
		s.redisClient = redis.NewClient(&redis.Options{Addr: s.cfg.RateLimit.RedisAddr})
		s.limiter = ratelimit.NewRedisLimiter(s.redisClient, s.cfg.Limiter(), s.logger)
		s.logger.Info("rate limiting via redis", zap.String("addr", s.cfg.RateLimit.RedisAddr))
		return
	}
	s.limiter = ratelimit.NewLocalLimiter(s.cfg.Limiter())
	s.logger.Info("rate limiting in process")
}

func (s *Server) startHTTPServer() error {
	generateHandler := handlers.NewGenerateHandler(s.orchestrator, s.cfg.Storage.UploadDir, s.logger)
	downloadHandler := handlers.NewDownloadHandler(
		s.store, s.cleaner, s.cfg.Brightness, s.cfg.Storage.Ephemeral, s.collector, s.logger)
	modelsHandler := handlers.NewModelsHandler(s.store, s.logger)
	healthHandler := handlers.NewHealthHandler(s.pool, s.store, Version, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", healthHandler.HandleRoot)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("POST /api/models/generate", generateHandler.HandleGenerate)
	mux.HandleFunc("POST /api/models/generate-from-image", generateHandler.HandleGenerateFromImage)
	mux.HandleFunc("GET /api/models/download/{id}", downloadHandler.HandleDownload)
	mux.HandleFunc("GET /api/models", modelsHandler.HandleList)
	mux.HandleFunc("GET /api/models/{id}", modelsHandler.HandleInfo)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestLogger(s.logger),
		Metrics(s.collector),
		CORS(),
		RateLimit(s.limiter, s.logger),
	}
	if s.auditStore != nil {
		middlewares = append(middlewares, Audit(s.auditStore))
	}
	handler := Chain(mux, middlewares...)

	s.httpManager = server.NewManager(handler, s.cfg.Server, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))

	cfg := server.DefaultConfig()
	cfg.Addr = s.cfg.MetricsAddr

	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops components in dependency order: no new requests, then
// drain pending cleanups, then release external connections.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cleaner != nil {
		s.cleaner.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Warn("redis close error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
