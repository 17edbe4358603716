// cmd/api/main.go
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/raidtools/gamedata-api/internal/cache"
	"github.com/raidtools/gamedata-api/internal/config"
	"github.com/raidtools/gamedata-api/internal/http/routes"
	"github.com/raidtools/gamedata-api/internal/jobs"
	"github.com/raidtools/gamedata-api/internal/proxy"
	"github.com/raidtools/gamedata-api/internal/registry"
	"github.com/raidtools/gamedata-api/internal/upstream"
	"github.com/raidtools/gamedata-api/internal/version"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init cache store")
	}

	client := upstream.New(cfg.Upstream.ContentBase(), cfg.Upstream.ListingBase(), cfg.Upstream.Branch,
		upstream.WithToken(cfg.Upstream.Token),
	)

	// With Redis available, stale-entry refreshes go through the task
	// queue to the worker; without it they run in-process.
	var enqueuer jobs.Enqueuer
	if cfg.HasRedis() {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer asynqClient.Close() //nolint:errcheck
		enqueuer = jobs.NewAsynqEnqueuer(asynqClient)
	}

	reg := registry.Default()
	svc := proxy.New(proxy.Options{
		Registry: reg,
		Fetcher:  client,
		Store:    store,
		Enqueuer: enqueuer,
		FreshTTL: cfg.Cache.FreshTTL,
		StaleTTL: cfg.Cache.StaleTTL,
		Logger:   logger,
	})

	s := routes.New(routes.ServerOptions{
		Proxy:  svc,
		Types:  reg,
		Source: cfg.Upstream.SourceURL(),
	})

	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(s.Router)
	h = hlog.NewHandler(logger)(h)

	// Health and metrics live on their own listener so the public
	// surface stays exactly the documented API.
	if cfg.AdminAddr != "" {
		go serveAdmin(cfg.AdminAddr, logger)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("version", version.Version).
		Str("repo", cfg.Upstream.Repo).
		Str("branch", cfg.Upstream.Branch).
		Dur("cache_fresh", cfg.Cache.FreshTTL).
		Dur("cache_hard", cfg.Cache.HardTTL()).
		Msg("gamedata api starting")

	srv := &http.Server{Addr: cfg.Addr, Handler: h}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newStore(cfg *config.Config, logger zerolog.Logger) (cache.Store, error) {
	switch {
	case cfg.HasRedis():
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedis(client), nil
	case cfg.Cache.Dir != "":
		logger.Info().Str("dir", cfg.Cache.Dir).Msg("using file cache")
		return cache.NewFileStore(cfg.Cache.Dir)
	default:
		logger.Info().Msg("using in-memory cache")
		return cache.NewMemory(), nil
	}
}

func serveAdmin(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Debug().Err(err).Msg("write health response")
		}
	})

	logger.Info().Str("addr", addr).Msg("admin listener starting")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("admin listener stopped")
	}
}
