package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surfaceops/surface-api/config"
	"github.com/surfaceops/surface-api/internal/blob"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/datasync"
	"github.com/surfaceops/surface-api/internal/ingest"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
	"github.com/surfaceops/surface-api/internal/pubsub"
	"github.com/surfaceops/surface-api/internal/queue"
	"github.com/surfaceops/surface-api/internal/service"
)

const shutdownWaitTimeout = 30 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs       *service.JobService
	Workers    *service.WorkerService
	Assignment *service.AssignmentService
	Reports    *service.ReportService

	Consumer   *ingest.Consumer
	Reconciler *service.ReconcilerService
	Outbox     *service.OutboxRelay

	Queue         *queue.ResultQueue
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.MetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Jobs      *data.JobRepo
	Histories *data.JobHistoryRepo
	Workers   *data.WorkerRepo
	Keys      *data.APIKeyRepo
	ErrorLogs *data.ErrorLogRepo
	Outbox    *data.OutboxRepo
}

func buildRepositories(db *sql.DB, logger *slog.Logger) *serviceRepositories {
	cfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		Jobs:      data.NewJobRepo(db, cfg),
		Histories: data.NewJobHistoryRepo(db, cfg),
		Workers:   data.NewWorkerRepo(db, cfg),
		Keys:      data.NewAPIKeyRepo(db),
		ErrorLogs: data.NewErrorLogRepo(db),
		Outbox:    data.NewOutboxRepo(db, cfg),
	}
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

func buildDataSync(cfg config.DataSyncConfig, logger *slog.Logger) (core.DataSync, error) {
	if cfg.Endpoint == "" {
		return datasync.Noop{}, nil
	}
	forwarder, err := datasync.NewHTTPForwarder(datasync.ForwarderOptions{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build data sync forwarder: %w", err)
	}
	return forwarder, nil
}

// BuildServices assembles all services from their adapters. The context is
// only used for one-time setup such as loading AWS credentials.
func BuildServices(ctx context.Context, deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("app config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database handle is required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}

	cfg := deps.Config
	logger := deps.Logger
	repos := buildRepositories(deps.DB, logger)
	observability := buildObservability(logger, cfg.Observability)
	sink := observability.MetricsSink
	workflows := config.DefaultWorkflows()

	resultQueue, err := queue.NewResultQueue(queue.Options{
		Client:     deps.RedisClient,
		Visibility: cfg.Ingest.Visibility,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build result queue: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.Options{
		Region:        cfg.Blob.Region,
		Endpoint:      cfg.Blob.Endpoint,
		PathStyle:     cfg.Blob.PathStyle,
		MaxObjectSize: cfg.Blob.MaxObjectBytes,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build blob store: %w", err)
	}

	publisher, err := pubsub.NewRedisPublisher(deps.RedisClient, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build publisher: %w", err)
	}

	sync, err := buildDataSync(cfg.DataSync, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Jobs:      repos.Jobs,
		Histories: repos.Histories,
		ErrorLogs: repos.ErrorLogs,
		Workflows: workflows,
		Logger:    logger,
		Metrics:   sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	workers, err := service.NewWorkerService(service.WorkerServiceOptions{
		Workers:     repos.Workers,
		Keys:        repos.Keys,
		CloudAPIKey: cfg.CloudAPIKey,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build worker service: %w", err)
	}

	assignment, err := service.NewAssignmentService(service.AssignmentServiceOptions{
		Jobs:    repos.Jobs,
		Workers: repos.Workers,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build assignment service: %w", err)
	}

	reports, err := service.NewReportService(service.ReportServiceOptions{
		Jobs:    repos.Jobs,
		Queue:   resultQueue,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build report service: %w", err)
	}

	consumer, err := ingest.NewConsumer(ingest.ConsumerOptions{
		Queue:         resultQueue,
		Blobs:         blobs,
		Jobs:          repos.Jobs,
		Histories:     repos.Histories,
		Sync:          sync,
		Parsers:       ingest.NewParserRegistry(),
		Workflows:     workflows,
		Concurrency:   cfg.Ingest.Concurrency,
		PollInterval:  cfg.Ingest.PollInterval,
		MaxAttempts:   cfg.Ingest.MaxAttempts,
		RetryBackoff:  cfg.Ingest.RetryBackoff,
		SweepInterval: cfg.Ingest.SweepInterval,
		Logger:        logger,
		Metrics:       sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build ingest consumer: %w", err)
	}

	reconciler, err := service.NewReconcilerService(service.ReconcilerServiceOptions{
		Repo:    repos.Jobs,
		Config:  cfg.Reconciler,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build reconciler: %w", err)
	}

	relay, err := service.NewOutboxRelay(service.OutboxRelayOptions{
		Repo:      repos.Outbox,
		Publisher: publisher,
		Config:    cfg.Outbox,
		Logger:    logger,
		Metrics:   sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build outbox relay: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Workers:       workers,
		Assignment:    assignment,
		Reports:       reports,
		Consumer:      consumer,
		Reconciler:    reconciler,
		Outbox:        relay,
		Queue:         resultQueue,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig groups everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client
	Services    ServiceContainer
	Logger      *slog.Logger
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig) []backgroundService {
	return []backgroundService{
		{
			mode:  config.ServiceModeIngest,
			name:  "ingest consumer",
			start: cfg.Services.Consumer.Run,
		},
		{
			mode:  config.ServiceModeReconciler,
			name:  "reconciler",
			start: cfg.Services.Reconciler.Run,
		},
		{
			mode:  config.ServiceModeOutbox,
			name:  "outbox relay",
			start: cfg.Services.Outbox.Run,
		},
	}
}

func launchBackground(
	ctx context.Context,
	descriptor backgroundService,
	errCh chan<- error,
	logger *slog.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			select {
			case errCh <- fmt.Errorf("%s failed: %w", descriptor.name, err):
			case <-ctx.Done():
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. Blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(config.ValidServiceModes())+1)

	var httpServer *http.Server
	if enabled[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			DB:       cfg.DB,
			Redis:    cfg.RedisClient,
			Services: cfg.Services,
			Logger:   logger,
		})
	}

	handles := make([]backgroundServiceHandle, 0, 3)
	for _, svc := range buildBackgroundServices(cfg) {
		if !enabled[svc.mode] {
			continue
		}
		handles = append(handles, backgroundServiceHandle{
			name: svc.name,
			done: launchBackground(serviceCtx, svc, errCh, logger),
		})
	}

	return waitForShutdown(shutdownConfig{
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		shutdown:    cfg.Config.HTTP.ShutdownTimeout,
		logger:      logger,
		backgrounds: handles,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	shutdown    time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for a shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(cfg.httpServer, cfg.shutdown, cfg.logger); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
	return nil
}

func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
