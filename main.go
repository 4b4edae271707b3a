package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/prettylog/blogpipe/internal/cache"
	"github.com/prettylog/blogpipe/internal/config"
	"github.com/prettylog/blogpipe/internal/extractor"
	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/metrics"
	"github.com/prettylog/blogpipe/internal/objectstore"
	"github.com/prettylog/blogpipe/internal/pipeline"
	"github.com/prettylog/blogpipe/internal/store"
)

const (
	runLockTTL   = 10 * time.Minute
	processedTTL = 30 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shards := gid.NewPool()
	ids, err := shards.Get(cfg.Snowflake.MachineID)
	if err != nil {
		logger.Error("building id generator", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	apiCfg := &apiConfig{
		platform:   cfg.App.Platform,
		signingKey: cfg.App.SigningKey,
		contentDir: cfg.Pipeline.ContentDir,
		uploadDir:  cfg.Pipeline.UploadDir,
		gidGen:     ids,
		shards:     shards,
		owned:      make(map[int]bool),
		gatherer:   reg,
		logger:     logger,
		idRate:     600,
	}
	for _, machineID := range cfg.Snowflake.Owned() {
		if _, err := shards.Get(machineID); err != nil {
			logger.Error("building shard generator", "machine_id", machineID, "error", err)
			os.Exit(1)
		}
		apiCfg.owned[machineID] = true
	}
	if cfg.App.SigningKey == "" {
		logger.Warn("SIGNING_KEY is not set, authenticated routes will reject every request")
	}

	if cfg.Postgres.URL != "" {
		db, err := store.Open(ctx, cfg.Postgres.URL, ids)
		if err != nil {
			logger.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Error("migrating schema", "error", err)
			os.Exit(1)
		}
		apiCfg.posts = db
		apiCfg.categories = db
		apiCfg.resetter = db
		apiCfg.db = db

		runner := pipeline.Runner{
			IDs:       ids,
			Extractor: extractor.Chain{extractor.Frontmatter{}},
			Objects:   objectstore.NewLocal(cfg.Pipeline.UploadDir, cfg.Pipeline.PublicBaseURL),
			Repo:      pipeline.StoreRepository{Store: db},
			UserID:    cfg.Pipeline.DefaultUserID,
			Workers:   cfg.Pipeline.Workers,
			Logger:    logger,
		}
		if cfg.Redis.Addr != "" {
			client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.DB)
			if err != nil {
				logger.Error("connecting to redis", "error", err)
				os.Exit(1)
			}
			defer client.Close()
			runner.Processed = cache.NewProcessed(client, processedTTL)
			runner.Lock = cache.NewRunLock(client, runLockTTL)
		} else {
			logger.Info("REDIS_ADDR not set, runs are neither deduplicated nor locked")
		}
		apiCfg.runs = runnerTemplate{base: runner}
	} else {
		logger.Warn("DB_URL not set, serving ids only")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           newRouter(apiCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("api listening",
		"port", cfg.App.Port,
		"platform", cfg.App.Platform,
		"machine_id", ids.MachineID(),
		"shards", shards.Size(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
}
