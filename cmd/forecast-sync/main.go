package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httpapi "github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/api/http"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/broker"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/config"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/geo"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ingest"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/logging"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/notify"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/scheduler"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/store"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/subscription"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/transform"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		logger.Fatal("register metrics", zap.Error(err))
	}

	// Time-series store and station source.
	var (
		writer   store.Writer
		stations station.Source
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.PersistDeduplicate)
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("ensure schema", zap.Error(err))
		}
		writer = pg
		stations = station.NewPostgresSource(pg.Pool())
	} else {
		logger.Warn("DATABASE_URL not set, notifications are kept in memory only")
		writer = store.NewMemoryStore(cfg.PersistDeduplicate, 10000)
	}
	if cfg.StationsFile != "" {
		stations = station.NewFileSource(cfg.StationsFile)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, providers.OpenWeatherOptions{
		BaseURL:       cfg.OpenWeatherBaseURL,
		Units:         cfg.OpenWeatherUnits,
		Lang:          cfg.OpenWeatherLang,
		RatePerSecond: cfg.ProviderRatePerSec,
	})

	brokerClient := broker.New(broker.Options{
		BaseURL:    cfg.BrokerURL,
		HealthURL:  cfg.BrokerHealthURL,
		Token:      cfg.BrokerToken,
		Tenant:     cfg.BrokerTenant,
		ContextURL: cfg.BrokerContextURL,
		Timeout:    cfg.HTTPTimeout,
		MaxConns:   cfg.BrokerMaxConns,
		BatchDelay: cfg.BrokerBatchDelay,
	}, logger, m)

	subOpts := subscription.Options{NotifyURL: cfg.NotifyURL}
	if cfg.RedisAddr != "" {
		rdb, err := subscription.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, subscriptions are coordinated in process only", zap.Error(err))
		} else {
			defer rdb.Close()
			subOpts.Registry = subscription.NewRedisRegistry(rdb)
			subOpts.Locker = subscription.NewRedisLocker(rdb, time.Minute)
		}
	}
	if subOpts.Registry == nil {
		subOpts.Registry = subscription.NewMemoryRegistry()
	}
	subs := subscription.NewManager(brokerClient, subOpts, logger.Named("subscriptions"), m)

	domainOpts := ingest.DomainOptions{
		BatchSize:    cfg.BrokerBatchSize,
		ForecastDays: cfg.ForecastDays,
	}
	airOpts := domainOpts
	airOpts.Forecast = transform.ForecastOptions{MaxSlots: cfg.AirForecastMaxSlots}
	orchestrator := ingest.NewOrchestrator(stations, []ingest.Domain{
		ingest.NewWeatherDomain(provider, brokerClient, domainOpts),
		ingest.NewAirQualityDomain(provider, brokerClient, airOpts),
	}, logger.Named("ingest"), m)

	// Scheduler that periodically runs the ingestion cycle.
	sched := scheduler.New(orchestrator, cfg.FetchInterval, cfg.RunOnStartup, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp()
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Persister:     notify.NewPersister(writer, logger.Named("notify"), m),
		Resolver:      geo.NewResolver(stations),
		Ingest:        orchestrator,
		Subscriptions: subs,
		Broker:        brokerClient,
		Gatherer:      reg,
		Logger:        logger,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()
	logger.Info("forecast-sync listening", zap.String("port", cfg.Port), zap.String("notifyUrl", cfg.NotifyURL))

	// Subscription failures leave the service running without live persistence.
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if !brokerClient.HealthCheck(initCtx) {
			logger.Warn("broker health probe failed, attempting subscription setup anyway")
		}
		_ = subs.Initialize(initCtx)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
