package main

import (
	"context"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/raidtools/gamedata-api/internal/cache"
	"github.com/raidtools/gamedata-api/internal/config"
	"github.com/raidtools/gamedata-api/internal/jobs"
	"github.com/raidtools/gamedata-api/internal/proxy"
	"github.com/raidtools/gamedata-api/internal/registry"
	"github.com/raidtools/gamedata-api/internal/upstream"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if !cfg.HasRedis() {
		logger.Fatal().Msg("REDIS_ADDR is required for the worker")
	}

	// The worker writes into the same shared cache the API reads.
	store := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))

	client := upstream.New(cfg.Upstream.ContentBase(), cfg.Upstream.ListingBase(), cfg.Upstream.Branch,
		upstream.WithToken(cfg.Upstream.Token),
	)

	svc := proxy.New(proxy.Options{
		Registry: registry.Default(),
		Fetcher:  client,
		Store:    store,
		FreshTTL: cfg.Cache.FreshTTL,
		StaleTTL: cfg.Cache.StaleTTL,
		Logger:   logger,
	})

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 8,
		Queues: map[string]int{
			"default": 5,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeCacheRefresh, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.RefreshPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad refresh payload")
			return err
		}

		start := time.Now()
		if err := svc.Refresh(ctx, p); err != nil {
			logger.Error().Err(err).
				Str("mode", p.Mode).
				Str("type", p.Type).
				Dur("duration", time.Since(start)).
				Msg("refresh failed")
			return err
		}
		logger.Info().
			Str("mode", p.Mode).
			Str("type", p.Type).
			Dur("duration", time.Since(start)).
			Msg("refresh done")
		return nil
	})

	logger.Info().Str("redis", cfg.RedisAddr).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
