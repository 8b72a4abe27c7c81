package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"talkquest/internal/cache"
	"talkquest/internal/config"
	"talkquest/internal/database"
	"talkquest/internal/handlers"
	"talkquest/internal/logging"
	"talkquest/internal/scheduler"
	"talkquest/internal/security"
	"talkquest/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	applied, err := db.RunMigrations(ctx)
	if err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	logger.Info("Migrations completed", zap.Strings("applied", applied))

	statsCache := newStatsCache(ctx, cfg, logger)

	emailService, err := service.NewEmailService(ctx, cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service", zap.Error(err))
	}

	// Initialize services
	clock := service.SystemClock()
	events := service.NewEventLog(db, clock)
	xpService := service.NewXPService(db, events, statsCache, clock, logger, cfg.MaxGameXP)
	achievementService := service.NewAchievementService(db, xpService, events, statsCache, clock, logger)
	streakService := service.NewStreakService(db, achievementService, events, statsCache, clock, cfg.Location(), logger)
	goalService := service.NewGoalService(db, xpService, achievementService, events, emailService, statsCache, clock, logger)
	practiceService := service.NewPracticeService(db, clock, logger)
	statsService := service.NewStatsService(db, statsCache, cfg.StatsCacheTTL, logger)
	directory := service.NewUserDirectory(db, clock)

	verifier, err := security.NewIdentityVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("Failed to initialize identity verifier", zap.Error(err))
	}
	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer limiter.Stop()

	// Nightly streak lapse
	jobs := scheduler.New(streakService, cfg.StreakLapseAt, cfg.Location(), logger)
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer jobs.Stop()

	handler := handlers.NewRouter(handlers.Routes{
		Middleware: handlers.NewMiddleware(verifier, directory, limiter, cfg.InternalAPIToken, logger),
		Health:     handlers.NewHealthHandler(db, logger),
		Progress:   handlers.NewProgressHandler(statsService, streakService, xpService, achievementService, events, logger),
		Practice:   handlers.NewPracticeHandler(practiceService, logger),
		Goals:      handlers.NewGoalHandler(goalService, logger),
		Internal:   handlers.NewInternalHandler(achievementService, logger),
		Metrics:    promhttp.Handler(),
		Logger:     logger,
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newStatsCache connects to Redis when REDIS_URL is set. Without it, or when
// Redis is unreachable, stats are read straight from the database.
func newStatsCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) service.StatsCache {
	if cfg.RedisURL == "" {
		logger.Info("Stats cache disabled: REDIS_URL not configured")
		return service.NoopStatsCache{}
	}

	client, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Stats cache disabled: Redis unavailable", zap.Error(err))
		return service.NoopStatsCache{}
	}
	logger.Info("Stats cache enabled", zap.Duration("ttl", cfg.StatsCacheTTL))
	return cache.NewRedisStatsCache(client)
}
