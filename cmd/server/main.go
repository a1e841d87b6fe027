package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"domus/internal/acceptance"
	"domus/internal/auditlog"
	audithandler "domus/internal/auditlog/handler"
	"domus/internal/compliance"
	comphandler "domus/internal/compliance/handler"
	"domus/internal/directory"
	"domus/internal/platform/auth"
	"domus/internal/platform/config"
	"domus/internal/platform/httpserver"
	"domus/internal/platform/kafka"
	"domus/internal/platform/logger"
	"domus/internal/platform/postgres"
	platformredis "domus/internal/platform/redis"
	"domus/internal/portal"
	portalhandler "domus/internal/portal/handler"
	reghandler "domus/internal/regulation/handler"
	regmetrics "domus/internal/regulation/metrics"
	regservice "domus/internal/regulation/service"
	regstore "domus/internal/regulation/store"
	httptransport "domus/internal/transport/http"
)

// main wires storage, caching, messaging, and the HTTP surface. Every
// external dependency is optional: with no Postgres DSN, Redis URL, or Kafka
// brokers configured the server runs fully in memory, which is how local
// development and most tests operate.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		regStore     regservice.Store    = regstore.NewInMemory()
		auditStore   auditlog.Store      = auditlog.NewInMemoryStore()
		acceptStore  acceptance.Store    = acceptance.NewInMemoryStore()
		regOpts      []regservice.Option
		healthChecks []httptransport.HealthCheck
	)

	memDir := directory.NewInMemory()
	var (
		residences directory.ResidenceDirectory = memDir
		students   directory.StudentDirectory   = memDir
		contracts  directory.ContractDirectory  = memDir
	)

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("postgres schema apply failed", "error", err)
			os.Exit(1)
		}
		regStore = regstore.NewPostgres(db)
		auditStore = auditlog.NewPostgres(db)
		acceptStore = acceptance.NewPostgresStore(db)
		pgDir := directory.NewPostgres(db)
		residences, students, contracts = pgDir, pgDir, pgDir
		regOpts = append(regOpts, regservice.WithTx(newRegulationPostgresTx(db)))
		healthChecks = append(healthChecks, httptransport.HealthCheck{
			Name:  "postgres",
			Check: db.PingContext,
		})
		log.Info("postgres storage enabled")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache := regstore.NewActiveCache(redisClient.Client, cfg.Redis.CacheTTL)
		regOpts = append(regOpts, regservice.WithActiveCache(cache))
		healthChecks = append(healthChecks, httptransport.HealthCheck{
			Name:  "redis",
			Check: redisClient.Health,
		})
		log.Info("redis active-regulation cache enabled")
	}

	publisher, err := kafka.NewPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		log.Error("kafka connect failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close(context.Background())
		regOpts = append(regOpts, regservice.WithEventSink(publisher))
		log.Info("kafka lifecycle events enabled", "topic", cfg.Kafka.Topic)
	}

	auditService := auditlog.NewService(auditStore)

	regOpts = append(regOpts,
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
	)
	regService := regservice.New(regStore, auditService, residences, regOpts...)

	acceptService := acceptance.NewService(acceptStore, acceptance.WithLogger(log))

	compService := compliance.NewService(regService, acceptService, residences, students, contracts,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	portalService := portal.NewService(regService, acceptService, contracts,
		portal.WithLogger(log),
	)

	jwtService := auth.NewJWTService(cfg.Server.JWTSigningKey, "domus")

	router := httptransport.NewRouter(
		httptransport.RouterConfig{
			Logger:         log,
			RequestTimeout: cfg.Server.RequestTimeout,
			HealthChecks:   healthChecks,
		},
		reghandler.New(regService, log, jwtService),
		audithandler.New(auditService, log, jwtService),
		comphandler.New(compService, log, jwtService),
		portalhandler.New(portalService, log, jwtService),
	)

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting domus", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
