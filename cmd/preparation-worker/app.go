package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"groundseg/internal/api"
	"groundseg/internal/broker"
	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/deduplication"
	"groundseg/internal/inputmgmt"
	"groundseg/internal/logger"
	"groundseg/internal/output"
	"groundseg/internal/tracking"
	"groundseg/pkg/bootstrap"
	"groundseg/pkg/health"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/middleware"
	"groundseg/pkg/models"
	"groundseg/pkg/ratelimit"
	"groundseg/pkg/tracelog"
	"groundseg/pkg/tracing"
)

const serviceName = constants.ServicePreparationWorker

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	conns          *bootstrap.Connections
	store          tracking.Store
	service        *inputmgmt.Service
	guard          *deduplication.Service
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

	metrics.RegisterPreparationMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	store, conns, err := a.dbConnector.InitTracking(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize tracking store: %w", err)
	}
	a.store = store
	a.conns = conns

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if a.Config.Deduplication.Enabled {
		metrics.RegisterDedupMetrics()
		repo := deduplication.NewCircuitBreakerRepository(deduplication.NewRepository(a.conns.Redis), a.Config.CircuitBreaker)
		a.guard = deduplication.NewService(repo, a.Config.Deduplication, a.Logger)
	}

	a.initHTTPServer(ctx)
	return nil
}

func (a *App) initService() error {
	patterns, err := inputmgmt.CompilePatterns(a.Config.Classification)
	if err != nil {
		return err
	}

	evaluator, err := output.NewCompletionEvaluator(a.Config.Output.CompletionExpression)
	if err != nil {
		return err
	}

	signalTopic := a.Config.Broker.Kafka.SignalTopic
	if signalTopic == "" {
		signalTopic = constants.DefaultSignalTopic
	}
	signaler := output.NewSignaler(a.store, evaluator, a.Producer, signalTopic, serviceName, a.Logger)

	a.service = inputmgmt.NewService(a.store, patterns, tracelog.FromLogger(a.Logger, serviceName),
		inputmgmt.WithSignaler(signaler),
	)

	a.Logger.Infow("Input management ready",
		"signal_topic", signalTopic,
		"completion_expression", evaluator.Expression(),
	)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	if a.conns.Redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.conns.Redis))
	}
	if a.conns.Postgres != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	}
	if a.conns.Mongo != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.conns.Mongo))
	}

	router.GET("/health", health.Handler(healthRegistry))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if a.Config.StatusAPI.Enabled {
		metrics.RegisterStatusAPIMetrics()
		group := router.Group("")
		if a.Config.StatusAPI.RateLimit.Enabled {
			rateLimitConfig := ratelimit.FromConfig(a.Config.StatusAPI.RateLimit)
			group.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
			a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
		}
		api.NewHandler(a.store, a.Logger).RegisterRoutes(group)
		api.RegisterSwagger(router)
	}

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
		inputTopic = constants.DefaultInputTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, handler)
	})

	return g.Wait()
}

func (a *App) handleMessage(ctx context.Context, msg models.ProcessingMessage) error {
	_, err := a.service.ManageInput(ctx, msg)
	return err
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
