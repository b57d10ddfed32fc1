package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	corecmd "parcelbot/core/cmd"
	coreconfig "parcelbot/core/config"
	"parcelbot/core/database"
	"parcelbot/core/logger"
	"parcelbot/internal/bot"
	"parcelbot/internal/pricing"
	"parcelbot/internal/storage/postgres"
)

func main() {
	// .env is for local runs; absence is fine in containers.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Bootstrap:         bootstrap,
	})
	if err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}

func bootstrap(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
	if err := logger.Init(cfg); err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	carrier := pricing.NewClient(pricing.ClientOptions{
		BaseURL:     cfg.Pricing.BaseURL,
		Timeout:     time.Duration(cfg.Pricing.RequestTimeoutSeconds) * time.Second,
		MaxAttempts: cfg.Pricing.MaxRetries,
		Backoff:     time.Duration(cfg.Pricing.RetryBackoffMS) * time.Millisecond,
	})
	estimator := pricing.NewEstimator(carrier, cache,
		time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second)

	return bot.New(cfg, postgres.New(db), estimator), nil
}
