package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"groundseg/internal/broker"
	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/deduplication"
	"groundseg/internal/execution"
	"groundseg/internal/logger"
	"groundseg/internal/objectstorage"
	"groundseg/internal/output"
	"groundseg/pkg/bootstrap"
	"groundseg/pkg/health"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/middleware"
	"groundseg/pkg/models"
	"groundseg/pkg/tracelog"
	"groundseg/pkg/tracing"
)

const serviceName = constants.ServiceExecutionWorker

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	conns          *bootstrap.Connections
	store          *objectstorage.MinioStore
	job            *execution.Job
	guard          *deduplication.Service
	outputTopic    string
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterExecutionMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	store, err := objectstorage.NewMinioStore(a.Config.ObjectStorage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	a.store = store

	if err := a.initJob(); err != nil {
		return fmt.Errorf("failed to initialize job: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if a.Config.Deduplication.Enabled {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.conns = &bootstrap.Connections{Redis: rdb}

		metrics.RegisterDedupMetrics()
		repo := deduplication.NewCircuitBreakerRepository(deduplication.NewRepository(rdb), a.Config.CircuitBreaker)
		a.guard = deduplication.NewService(repo, a.Config.Deduplication, a.Logger)
	}

	a.outputTopic = a.Config.Broker.Kafka.OutputTopic
	if a.outputTopic == "" {
		a.outputTopic = constants.DefaultOutputTopic
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initJob() error {
	cfg := a.Config.Execution

	uploader, err := objectstorage.NewUploadService(a.store, cfg, a.Logger)
	if err != nil {
		return err
	}

	processor := execution.NewCommandProcessor(cfg.Command, cfg.Timeout, a.Logger)
	builder := output.NewMessageBuilder(serviceName, a.Logger)

	a.job = execution.NewJob(cfg.SharedFolderRoot, a.store, uploader, processor, builder,
		tracelog.FromLogger(a.Logger, serviceName), a.Logger,
		execution.WithStation(cfg.Station),
	)

	a.Logger.Infow("Execution job ready",
		"shared_folder_root", cfg.SharedFolderRoot,
		"timeout", cfg.Timeout,
		"output_families", uploader.Families(),
	)
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewObjectStorageChecker(a.store))
	if a.conns != nil && a.conns.Redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.conns.Redis))
	}

	router.GET("/health", health.Handler(healthRegistry))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	handler := broker.Chain(a.handleMessage, a.guard.Middleware())

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultExecutionTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, handler)
	})

	return g.Wait()
}

func (a *App) handleMessage(ctx context.Context, msg models.ProcessingMessage) error {
	messages, err := a.job.Execute(ctx, msg)
	if err != nil {
		return err
	}

	for _, out := range messages {
		if err := a.Producer.Publish(ctx, a.outputTopic, out); err != nil {
			return err
		}
		metrics.IncOutputMessage(string(out.ProductFamily))
	}

	a.Logger.InfowCtx(ctx, "Published outputs", "topic", a.outputTopic, "count", len(messages))
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, serviceName)
	if a.guard != nil {
		a.guard.Stop()
	}

	closers := []bootstrap.Closer{{Name: "tracer provider", Close: a.tracerProvider.Shutdown}}
	closers = append(closers, a.conns.Closers()...)
	return a.Base.Shutdown(ctx, closers...)
}
