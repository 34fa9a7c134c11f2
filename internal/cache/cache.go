// Package cache stores extraction results so the same photo is not sent to
// the model twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// ErrMiss is returned by Get when no live entry exists.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented TTL store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache bounded by entry count.
type Memory struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]entry
	order      []string
	now        func() time.Time
}

// NewMemory creates a Memory cache. A non-positive ttl keeps entries until
// evicted; a non-positive maxEntries means 256.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Memory{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.remove(key)
		return nil, ErrMiss
	}
	return e.data, nil
}

// Set implements Cache. The oldest entry is evicted once maxEntries is reached.
func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		m.remove(key)
	}
	for len(m.order) >= m.maxEntries {
		m.remove(m.order[0])
	}

	e := entry{data: data}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[key] = e
	m.order = append(m.order, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) remove(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis creates a Redis cache. Keys are namespaced under "menuscan:".
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "menuscan:"}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Extractor is implemented by extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, img extract.Image) (*extract.Result, error)
}

// CachedExtractor serves repeated images from a Cache.
type CachedExtractor struct {
	next   Extractor
	cache  Cache
	logger *zap.Logger
}

// NewExtractor wraps next with cache.
func NewExtractor(next Extractor, c Cache, logger *zap.Logger) *CachedExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedExtractor{next: next, cache: c, logger: logger}
}

// Extract returns a cached result for identical image bytes. Partial results
// are never stored. Cache failures are logged and fall through to next.
func (c *CachedExtractor) Extract(ctx context.Context, img extract.Image) (*extract.Result, error) {
	key := ImageKey(img.Data)

	if data, err := c.cache.Get(ctx, key); err == nil {
		var res extract.Result
		if err := json.Unmarshal(data, &res); err == nil {
			c.logger.Debug("extraction cache hit", zap.String("key", shortKey(key)))
			return &res, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", shortKey(key)))
	} else if !errors.Is(err, ErrMiss) {
		c.logger.Warn("cache read failed", zap.Error(err))
	}

	res, err := c.next.Extract(ctx, img)
	if err != nil || res.Partial {
		return res, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("encode result for cache", zap.Error(err))
		return res, nil
	}
	if err := c.cache.Set(ctx, key, data); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return res, nil
}

const keyPrefix = "extract:"

// ImageKey is the hex SHA-256 of the image bytes.
func ImageKey(data []byte) string {
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}

func shortKey(key string) string {
	key = strings.TrimPrefix(key, keyPrefix)
	if len(key) > 12 {
		key = key[:12]
	}
	return key
}
