package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/tcasworker/config"
	"sjsage522/tcasworker/logger"
	"sjsage522/tcasworker/services/cache"
	"sjsage522/tcasworker/services/publisher"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Pipeline failed")
	}
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("close publisher")
		}
	}
}

// initializeServices initializes the optional cache and publisher. A nil
// Cache means every lookup is resolved again.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Publisher: publisher.NopPublisher{}}

	// Cache entries are namespaced per run so they never outlive it
	runID := strconv.FormatInt(time.Now().UnixNano(), 36)

	switch cfg.CacheBackend {
	case "memory":
		services.Cache = cache.NewMemoryCache()
		logger.ForCache().Info().Str("run_id", runID).Msg("Using in-memory resolver cache")
	case "memcache":
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr, runID)
		logger.Info("Connected to Memcache at %s (run %s)", cfg.MemcacheAddr, runID)
	}

	switch cfg.PublishBackend {
	case "redis":
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	case "sqlite":
		sqlitePublisher, err := publisher.NewSQLitePublisher(cfg.SQLitePath, cfg.RedisStreamMaxLength)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
		}
		services.Publisher = sqlitePublisher

		logger.Info("Archiving records to %s", cfg.SQLitePath)
	}

	return services, nil
}
