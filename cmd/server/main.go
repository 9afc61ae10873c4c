package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	httprouter "github.com/deepresearch-app/server/internal/api/http/router"

	"github.com/deepresearch-app/server/internal/api/http/handler"
	"github.com/deepresearch-app/server/internal/config"
	"github.com/deepresearch-app/server/internal/csrf"
	"github.com/deepresearch-app/server/internal/kv"
	"github.com/deepresearch-app/server/internal/logger"
	"github.com/deepresearch-app/server/internal/password"
	"github.com/deepresearch-app/server/internal/ratelimit"
	"github.com/deepresearch-app/server/internal/repository/postgres"
	"github.com/deepresearch-app/server/internal/service"
	"github.com/deepresearch-app/server/internal/session"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	// One shared key-value client behind the session manager, the rate
	// limiter and the health probe.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Token,
	})
	defer redisClient.Close()

	kvClient := kv.New(redisClient, kv.RetryConfig{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, logger)
	if err := kvClient.Connect(ctx); err != nil {
		logger.Fatal("failed to reach key-value store", "error", err)
	}

	hasher, err := password.NewHasher(password.Config{
		Time:        cfg.Password.Time,
		MemoryKiB:   cfg.Password.MemoryKiB,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure password hasher", "error", err)
	}

	userRepo := postgres.NewUserRepository(db)
	sessions := session.NewManager(kvClient, cfg.Session.TTL, logger)
	limiter := ratelimit.NewLimiter(kvClient, ratelimit.Config{
		IPLimit:          cfg.RateLimit.IPLimit,
		IPWindow:         cfg.RateLimit.IPWindow,
		EmailLimit:       cfg.RateLimit.EmailLimit,
		EmailWindow:      cfg.RateLimit.EmailWindow,
		FailureWindow:    cfg.RateLimit.FailureWindow,
		LockoutThreshold: cfg.RateLimit.LockoutThreshold,
		LockoutDuration:  cfg.RateLimit.LockoutDuration,
	}, logger)
	csrfService := csrf.NewService(cfg.CSRF.Secret, logger)

	authService := service.NewAuth(userRepo, sessions, limiter, hasher, csrfService, logger)

	authHandler := handler.NewAuth(authService, cfg.Session.TTL, logger)
	healthHandler := handler.NewHealth(kvClient, db, logger)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httprouter.New(authHandler, healthHandler, authService, csrfService, logger),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server",
			"address", cfg.HTTP.Addr,
			"version", buildVersion,
			"commit", buildCommit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}
