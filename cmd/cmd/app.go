package cmd

import (
	"fmt"
	"time"

	"baobab/internal/analytics"
	"baobab/internal/clusterer"
	"baobab/internal/collector"
	"baobab/internal/config"
	"baobab/internal/docstore"
	"baobab/internal/edgecache"
	"baobab/internal/edgesync"
	"baobab/internal/enrich"
	"baobab/internal/fetch"
	"baobab/internal/keywords"
	"baobab/internal/kvstore"
	"baobab/internal/llm"
	"baobab/internal/logger"
	"baobab/internal/search"
	"baobab/internal/server"
	"baobab/internal/sourcehealth"
	"baobab/internal/trending"
	"baobab/internal/vectorindex"
)

// app wires configuration and adapters into the pipeline components the
// commands run.
type app struct {
	cfg   *config.Config
	cache *edgecache.DB
	kv    *kvstore.Redis

	Collector *collector.Collector
	Syncer    *edgesync.Syncer
	Trending  *trending.Engine
	Health    *sourcehealth.Monitor
	Server    *server.Server
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store := docstore.NewClient(cfg.Mongo)
	cache, err := edgecache.New(cfg.Edge.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge cache: %w", err)
	}
	kv := kvstore.NewRedis(cfg.Redis)
	ai := llm.NewClient(cfg.AI)
	vectors := vectorindex.NewClient(cfg.Vector)
	fetcher := fetch.NewClient(30 * time.Second)

	kw := keywords.NewExtractor(store, cache, ai)
	pipeline := enrich.NewPipeline(kw, ai, vectors)

	a := &app{
		cfg:       cfg,
		cache:     cache,
		kv:        kv,
		Collector: collector.New(store, fetcher, pipeline),
		Syncer:    edgesync.New(store, cache),
		Trending:  trending.New(store, kv),
		Health:    sourcehealth.NewMonitor(store),
	}

	a.Server = server.New(server.Components{
		Fetcher:   fetcher,
		Pipeline:  pipeline,
		Keywords:  kw,
		Collector: a.Collector,
		Syncer:    a.Syncer,
		Clusterer: clusterer.New(ai),
		Search:    search.New(store, cache, vectors, ai),
		Trending:  a.Trending,
		Health:    a.Health,
		Analytics: analytics.New(store),
	}, cfg.Server)

	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		logger.Warn("edge cache close failed", "error", err)
	}
	if err := a.kv.Close(); err != nil {
		logger.Warn("redis close failed", "error", err)
	}
}
