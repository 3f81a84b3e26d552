package main

import (
	"fmt"
	"log/slog"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/catalog"
	"github.com/pannadata/matchingest/internal/config"
	"github.com/pannadata/matchingest/internal/logging"
	"github.com/pannadata/matchingest/internal/manifest"
	"github.com/pannadata/matchingest/internal/metrics"
	"github.com/pannadata/matchingest/internal/notify"
	"github.com/pannadata/matchingest/internal/storage"
)

// app holds the collaborators shared by all commands.
type app struct {
	cfg     *config.Config
	bands   *band.Set
	man     *manifest.Store
	store   storage.RecordStore
	met     *metrics.Metrics
	cat     catalog.Writer
	emitter notify.Emitter
	log     *slog.Logger
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging)
	log := logging.Component("main")

	bands, err := band.NewSet(cfg.Bands)
	if err != nil {
		return nil, fmt.Errorf("bands: %w", err)
	}
	man, err := manifest.Open(cfg.ManifestPath, logging.Component("manifest"))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.Init(cfg.Metrics.Namespace)
		metrics.Serve(cfg.Metrics, logging.Component("metrics"))
	}

	cat, err := catalog.NewWriter(catalog.Config{
		PostgresDSN: cfg.Catalog.DSN,
		Namespace:   cfg.Catalog.Namespace,
	})
	if err != nil {
		log.Warn("catalog unavailable, lineage disabled", "error", err)
		cat = nil
	}

	emitter := notify.NewEmitter(cfg.Notify.Notify(), logging.Component("notify"))

	return &app{
		cfg:     cfg,
		bands:   bands,
		man:     man,
		store:   store,
		met:     met,
		cat:     cat,
		emitter: emitter,
		log:     log,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.cat != nil {
		a.cat.Close()
	}
	if a.emitter != nil {
		a.emitter.Close()
	}
}

// category resolves the category flag, falling back to the default.
func (a *app) category(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.DefaultCategory
}
