package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"listing_governance/internal/api"
	"listing_governance/internal/governance"
	"listing_governance/internal/ingest"
	"listing_governance/internal/processor"
	"listing_governance/internal/repository"
	"listing_governance/internal/repository/memory"
	"listing_governance/internal/repository/sqlite"
	"listing_governance/internal/service"
	"listing_governance/pkg/config"
	"listing_governance/pkg/crypto"
	"listing_governance/pkg/infra/redis"
	"listing_governance/pkg/metrics"
	"listing_governance/pkg/validator"
)

const appName = "listing_governance"

// Server owns every long-lived component of the governance service.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.MetricsCollector
	repo       repository.DecisionRepository
	publisher  *redis.Publisher
	dispatcher *service.Dispatcher
	processor  *processor.GovernanceProcessor
	handler    http.Handler
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}

	engine, err := governance.NewEngine(governance.DefaultCatalog(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s.metrics = metrics.NewMetricsCollector(logger)
	s.metrics.SetCatalogSize(engine.Catalog().Len())

	if s.repo, err = openRepository(cfg.Store, logger); err != nil {
		return nil, err
	}

	var publisher service.Publisher
	if cfg.Redis.Addr != "" {
		s.publisher, err = redis.NewPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			_ = s.repo.Close()
			return nil, err
		}
		publisher = s.publisher
		logger.Info("Publishing directives to redis",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("channel", cfg.Redis.Channel))
	}

	sink := service.LoggingSink{Logger: logger}
	s.dispatcher = service.NewDispatcher(sink, sink, sink, publisher, service.DispatcherOptions{
		Workers:     cfg.Dispatcher.Workers,
		QueueSize:   cfg.Dispatcher.QueueSize,
		MaxAttempts: cfg.Dispatcher.MaxAttempts,
		Backoff:     cfg.Dispatcher.Backoff,
	}, logger).WithFailureRecorder(s.metrics)

	s.processor = processor.NewGovernanceProcessor(engine, s.repo, s.dispatcher,
		validator.NewSignalValidator(cfg.App.MaxPayloadBytes), logger).
		WithRecorder(s.metrics)

	handler := api.NewAPIHandler(s.processor, ingest.NewComparator(cfg.App.NoiseFloor),
		crypto.NewSigner(cfg.App.SigningSecret, logger), logger).
		WithRequestTimeout(cfg.App.RequestTimeout)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})
	s.handler = mux

	return s, nil
}

func openRepository(cfg config.StoreConfig, logger *slog.Logger) (repository.DecisionRepository, error) {
	if cfg.SQLitePath == "" {
		logger.Info("Keeping decisions in memory")
		return memory.NewDecisionRepository(), nil
	}

	repo, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision store: %w", err)
	}
	logger.Info("Recording decisions in sqlite", slog.String("path", cfg.SQLitePath))
	return repo, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves the API and metrics endpoints until ctx is cancelled, then
// shuts every component down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.App.HTTPAddr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := s.metrics.StartMetricsServer(s.cfg.App.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.App.ShutdownTimeout)
		defer cancel()

		return s.shutdown(shutdownCtx, httpServer, metricsServer)
	})

	return g.Wait()
}

func (s *Server) shutdown(ctx context.Context, httpServer, metricsServer *http.Server) error {
	var errs []error

	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis publisher close: %w", err))
		}
	}
	if err := s.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("decision store close: %w", err))
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics collector shutdown: %w", err))
	}

	for _, err := range errs {
		s.logger.Error("Shutdown step failed", slog.String("error", err.Error()))
	}
	s.logger.Info("Application shutdown complete")
	return errors.Join(errs...)
}
