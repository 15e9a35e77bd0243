package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lapis/internal/cache"
	"github.com/roach88/lapis/internal/config"
	"github.com/roach88/lapis/internal/schema"
	"github.com/roach88/lapis/internal/server"
	"github.com/roach88/lapis/internal/silo"
	"github.com/roach88/lapis/internal/store"
)

// app is a fully wired gateway: SILO client, optional cache and the HTTP
// server on top.
type app struct {
	cfg    *config.Config
	schema *schema.Schema
	client *silo.Client
	cache  *cache.Cache // nil when caching is off
	store  *store.Store // set for the sqlite backend
	server *server.Server
	logger *slog.Logger
}

// errSchema marks a config that loads but describes an invalid database.
var errSchema = errors.New("invalid database schema")

func newApp(cfg *config.Config, logger *slog.Logger, ids server.IDGenerator) (*app, error) {
	s, err := cfg.BuildSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, err)
	}

	a := &app{cfg: cfg, schema: s, logger: logger}
	a.client = silo.New(cfg.Silo.URL,
		silo.WithTimeout(cfg.SiloTimeout()),
		silo.WithLogger(logger.With("component", "silo")),
	)

	var engine silo.Querier = a.client
	backend, st, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		a.store = st
		a.cache = cache.New(a.client, backend, logger.With("component", "cache"))
		engine = a.cache
	}

	a.server, err = server.New(server.Config{
		Schema:  s,
		Engine:  engine,
		Catalog: a.client,
		IDs:     ids,
		Logger:  logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// openBackend opens the configured cache backend. It returns a nil
// backend when caching is off, and the store when it is SQLite-backed.
func openBackend(cfg *config.Config) (cache.Backend, *store.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return nil, nil, nil
	case config.BackendSQLite:
		st, err := store.Open(cfg.Cache.Path, store.WithTTL(cfg.CacheTTL()))
		if err != nil {
			return nil, nil, fmt.Errorf("opening cache database: %w", err)
		}
		return st, st, nil
	default:
		m, err := cache.NewMemory(cfg.Cache.MaxCostBytes, cfg.CacheTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("creating memory cache: %w", err)
		}
		return m, nil, nil
	}
}

// pruneStale drops persisted results of older data versions. Failure is
// not fatal: the cache purges itself on the first answer of a new version.
func (a *app) pruneStale(ctx context.Context) {
	if a.store == nil {
		return
	}
	info, err := a.client.Info(ctx)
	if err != nil {
		a.logger.Warn("could not fetch data version, keeping cached results", "error", err)
		return
	}
	n, err := a.store.DeleteStale(ctx, info.DataVersion)
	if err != nil {
		a.logger.Warn("pruning cached results failed", "error", err)
		return
	}
	entries, cost, err := a.store.Stats(ctx)
	if err != nil {
		a.logger.Warn("reading cache size failed", "error", err)
		entries, cost = -1, -1
	}
	a.logger.Info("pruned stale cached results",
		"deleted", n, "data_version", info.DataVersion, "entries", entries, "bytes", cost)
}

func (a *app) close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("error closing cache", "error", err)
	}
}
