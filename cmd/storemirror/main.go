package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"StoreMirror/internal/api"
	"StoreMirror/internal/catalog"
	"StoreMirror/internal/config"
	"StoreMirror/internal/feed"
	"StoreMirror/internal/remote"
	"StoreMirror/pkg/kit"
)

func main() {
	service := "storemirror"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	kv, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatal("open cache store", zap.Error(err))
	}
	defer func() { _ = kv.Close() }()

	registry := prometheus.NewRegistry()

	feedConnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_connects_total",
		Help: "Successful change feed connections, reconnects included",
	})
	registry.MustRegister(feedConnects)

	cache := catalog.NewCache(kv, log)
	store := catalog.NewStore(ctx, cache, log)

	changeFeed := feed.New(feed.Deps{
		URL:        cfg.Feed.URL,
		Origin:     service + "-" + uuid.NewString(),
		Log:        log,
		MinBackoff: cfg.Feed.MinBackoff,
		MaxBackoff: cfg.Feed.MaxBackoff,
		Connects:   feedConnects,
	})

	ctrl := catalog.NewController(catalog.ControllerDeps{
		Store:          store,
		Remote:         remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout),
		Feed:           changeFeed,
		Log:            log,
		Metrics:        catalog.NewMetrics(registry),
		RefreshTimeout: cfg.Remote.Timeout,
	})

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal("start sync controller", zap.Error(err))
	}

	srv := &api.Server{
		Sync:  ctrl,
		Log:   log,
		Ready: cache.Ping,
	}
	h := api.NewHandler(srv, api.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       registry,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	err = kit.RunHTTPServer(cfg.Server.Addr, h, log, func(ctx context.Context) error {
		return ctrl.Stop(ctx)
	})
	if err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openKV(ctx context.Context, cfg *config.Config) (catalog.KV, error) {
	if cfg.Cache.DatabaseURL == "" {
		return catalog.OpenBoltKV(cfg.Cache.Path)
	}

	db, err := sql.Open("pgx", cfg.Cache.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	kv := catalog.NewPostgresKV(db)
	if err := kv.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}
