package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodplanner/internal/assistant"
	"foodplanner/internal/clipper"
	"foodplanner/internal/llm"
	"foodplanner/internal/metrics"
	"foodplanner/internal/ratelimit"
	"foodplanner/internal/server"
	"foodplanner/internal/shopping"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, version, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database ready",
		zap.String("dialect", string(db.Dialect)),
		zap.Uint("schema_version", version))

	var gen llm.TextGenerator
	client, err := llm.NewFromConfig(ctx, cfg)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("no AI provider configured, AI endpoints will return 503")
	case err != nil:
		return fmt.Errorf("failed to initialize AI client: %w", err)
	default:
		defer client.Close()
		gen = client
		logger.Info("AI provider ready", zap.String("provider", client.Provider()))
	}

	collector := metrics.NewCollector()
	usage := metrics.NewStore(db, collector)
	ai := assistant.New(
		gen,
		clipper.NewClipper(cfg.AllowedRecipeDomains),
		usage,
		shopping.NewSubstitutionRepository(db),
		logger,
	)

	store, closeStore, err := rateLimitStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(server.Options{
		Config:         cfg,
		DB:             db,
		Assistant:      ai,
		Usage:          usage,
		Collector:      collector,
		RateLimitStore: store,
		Logger:         logger,
	})
	return srv.Run(ctx)
}

// rateLimitStore returns the Redis store when REDIS_URL is set, so limits are
// shared between instances, and an in-process store otherwise.
func rateLimitStore(ctx context.Context) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
	store, err := ratelimit.NewRedisStoreFromURL(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("rate limits stored in Redis")
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close Redis client", zap.Error(err))
		}
	}, nil
}
