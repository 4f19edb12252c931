package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulseboard/github-activity/cache"
	"github.com/pulseboard/github-activity/config"
	gh "github.com/pulseboard/github-activity/github"
	"github.com/pulseboard/github-activity/ratelimit"
	"github.com/pulseboard/github-activity/redis"
	"github.com/pulseboard/github-activity/server"
)

func main() {
	fmt.Println("Starting GitHub Activity Service...")
	cfg, err := config.NewLoader("APP").Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := ratelimit.NewTracker()
	pacer := ratelimit.NewPacer(cfg.GithubRateLimit, cfg.OpenaiRateLimit)
	memCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		logger.Fatal("cache init error", zap.Error(err))
	}

	var shared *redis.Cache
	if cfg.HasRedis() {
		var rdbClient *goredis.Client
		if cfg.RedisURL != "" {
			rdbClient, err = redis.ConnectToRedisURL(cfg.RedisURL, cfg.RedisConnTimeout)
		} else {
			rdbClient, err = redis.ConnectToRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisConnTimeout)
		}
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() { _ = rdbClient.Close() }()
		shared = redis.NewCache(rdbClient, cfg.RedisCacheTTL)
	}

	client, err := gh.NewClient(&cfg, tracker, pacer, memCache, logger)
	if err != nil {
		logger.Fatal("github client error", zap.Error(err))
	}

	srv := server.New(&cfg, logger, client, tracker, pacer, memCache, shared)

	// The in-memory cache evicts lazily on read; this sweep keeps entries
	// that are never read again from lingering past their ttl.
	go func() {
		ticker := time.NewTicker(cfg.CacheCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := memCache.Cleanup(); n > 0 {
					logger.Debug("cache cleanup", zap.Int("evicted", n))
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Env == "dev" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}
