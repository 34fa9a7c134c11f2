package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Saksham338101/menu-scanner1/internal/cache"
	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
	"github.com/Saksham338101/menu-scanner1/internal/graph"
	"github.com/Saksham338101/menu-scanner1/internal/llm"
	"github.com/Saksham338101/menu-scanner1/internal/sink"
	"github.com/Saksham338101/menu-scanner1/internal/store/postgres"
	"github.com/Saksham338101/menu-scanner1/internal/vector"
)

// newExtractor builds the batch extractor and wraps it with the configured
// cache. The returned cleanup closes any cache connection.
func newExtractor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Extractor, func(), error) {
	callers, err := llm.NewCallers(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create model callers: %w", err)
	}

	ex, err := extract.New(callers,
		extract.WithMaxBatches(cfg.Extraction.MaxBatches),
		extract.WithMaxItemsPerBatch(cfg.Extraction.MaxItemsPerBatch),
		extract.WithSeenWindow(cfg.Extraction.SeenWindow),
		extract.WithSinglePass(cfg.Extraction.SinglePass),
		extract.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create extractor: %w", err)
	}

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return cache.NewExtractor(ex, cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxEntries), logger), func() {}, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		closeFn := func() { _ = client.Close() }
		return cache.NewExtractor(ex, cache.NewRedis(client, cfg.Cache.TTL), logger), closeFn, nil
	default:
		return ex, func() {}, nil
	}
}

// stores holds the opened persistence backends. Nil fields are disabled.
type stores struct {
	graph   *graph.DB
	vectors *vector.Store
	pg      *postgres.Sink
	sinks   *sink.Multi
	names   []string
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// embedderConfig falls back to the LLM endpoint when no embedder endpoint is
// configured.
func embedderConfig(cfg *config.Config) *config.ProviderConfig {
	e := cfg.Embedder
	if e.BaseURL == "" {
		e.BaseURL = cfg.LLM.BaseURL
	}
	if e.APIKey == "" {
		e.APIKey = cfg.LLM.APIKey
	}
	return &e
}

// openStores opens every store with a configured path or URL.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{}
	var named []sink.Named

	if path := cfg.Storage.GraphPath; path != "" {
		db, err := graph.NewDBFromPath(path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open graph db: %w", err)
		}
		s.graph = db
		s.closers = append(s.closers, func() { _ = db.Close() })
		named = append(named, sink.Named{Name: "graph", Sink: db})
	}

	if path := cfg.Storage.VectorPath; path != "" {
		emb, err := llm.NewEmbedder(embedderConfig(cfg))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		vs, err := vector.NewPersistentStore(path, emb.Embed, vector.WithBatchEmbedder(emb))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		s.vectors = vs
		named = append(named, sink.Named{Name: "vector", Sink: vs})
	}

	if url := cfg.Storage.PostgresURL; url != "" {
		pool, err := postgres.NewPool(ctx, url, cfg.Storage.PostgresMaxConns)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.pg = pg
		named = append(named, sink.Named{Name: "postgres", Sink: pg})
	}

	for _, n := range named {
		s.names = append(s.names, n.Name)
	}
	s.sinks = sink.NewMulti(logger, named...)
	return s, nil
}
