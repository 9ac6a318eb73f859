package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/telemetry-ingest/internal/archive"
	"github.com/ukydev/telemetry-ingest/internal/auth"
	"github.com/ukydev/telemetry-ingest/internal/cache"
	"github.com/ukydev/telemetry-ingest/internal/config"
	"github.com/ukydev/telemetry-ingest/internal/consumer"
	"github.com/ukydev/telemetry-ingest/internal/db"
	"github.com/ukydev/telemetry-ingest/internal/handlers"
	"github.com/ukydev/telemetry-ingest/internal/ingest"
	"github.com/ukydev/telemetry-ingest/internal/logging"
	"github.com/ukydev/telemetry-ingest/internal/middleware"
	"github.com/ukydev/telemetry-ingest/internal/ratelimit"
	"github.com/ukydev/telemetry-ingest/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logging.Setup(cfg)

	gdb, err := db.Connect()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Connected to database")

	var store cache.Store
	redisStore, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CachePrefix)
	if err != nil {
		// The cache is an optimization; run degraded rather than refuse to start.
		log.WithError(err).WithField("addr", cfg.RedisAddr).
			Warn("Redis unavailable, falling back to in-process cache")
		store = cache.NewMemoryStore(cfg.CachePrefix)
	} else {
		log.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
		store = redisStore
	}

	repo := db.NewGormRepository(gdb)
	devices := cache.NewDeviceCache(store, cfg.DeviceTTL)

	limiter := ratelimit.New(store)
	limiter.Enabled = cfg.RateLimitEnabled
	limiter.MinDelay = cfg.RateMinDelay
	limiter.MaxPerMinute = cfg.RateMaxPerMin

	var archiver archive.Archiver
	if cfg.ArchiveEnabled {
		mongoClient, err := archive.ConnectMongo()
		if err != nil {
			log.WithError(err).Warn("Mongo archive unavailable, frames will not be archived")
		} else {
			archiver = archive.BestEffort(archive.NewMongoArchiver(mongoClient))
			log.Info("Raw frame archive enabled")
		}
	}

	validator := validate.New()
	service := ingest.NewService(repo, devices, nil)

	pipeline := &consumer.Pipeline{
		Validator: validator,
		Limiter:   limiter,
		Ingest:    service,
		Repo:      repo,
		Archiver:  archiver,
		Timeout:   30 * time.Second,
	}

	cons := consumer.New(consumer.Config{
		BrokerURL:            cfg.BrokerURL,
		ClientID:             cfg.ClientID,
		Username:             cfg.MQTTUser,
		Password:             cfg.MQTTPass,
		KeepAlive:            cfg.KeepAlive,
		Topics:               cfg.Topics,
		QoS:                  cfg.QoS,
		MaxReconnectAttempts: cfg.MaxAttempts,
	}, pipeline.Handler())

	if err := cons.Connect(); err != nil {
		log.WithError(err).WithField("broker", cfg.BrokerURL).
			Fatal("Failed to connect to MQTT broker")
	}
	log.WithFields(log.Fields{
		"broker": cfg.BrokerURL,
		"topics": cfg.Topics,
	}).Info("Connected to MQTT broker")

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run()
	}()

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handlers.NewAuthHandler(authService, &db.GormUserRepository{DB: gdb})
	telemetryHandler := &handlers.TelemetryHandler{
		Validator: validator,
		Limiter:   limiter,
		Ingest:    service,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.Handle("/api/telemetry", telemetryHandler)
	mux.HandleFunc("/healthz", handlers.Healthz)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      authMiddleware.Authenticate(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-consumerDone:
		if err != nil {
			log.WithError(err).Error("Consumer terminated")
		}
	}

	cons.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Shutdown complete")
}
