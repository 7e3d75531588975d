package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a named, item-counted Ristretto cache. Gauge records and
// resolved display metadata each get their own instance.
type RistrettoCache struct {
	name   string
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	Name        string // metric label, e.g. "gauges" or "display"
	NumCounters int64  // keys tracked for admission, ~10x MaxCost
	MaxCost     int64  // items, every entry costs 1
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg == nil || cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	if cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("cache %q: max cost must be positive", name)
	}
	numCounters := cfg.NumCounters
	if numCounters <= 0 {
		numCounters = cfg.MaxCost * 10
	}
	bufferItems := cfg.BufferItems
	if bufferItems <= 0 {
		bufferItems = 64
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: bufferItems,
		Metrics:     true,
		OnEvict: func(*ristretto.Item) {
			CacheEvictionsTotal.WithLabelValues(name).Inc()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create cache %q: %w", name, err)
	}

	return &RistrettoCache{
		name:   name,
		cache:  cache,
		logger: cfg.Logger.With(zap.String("cache", name)),
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (any, bool) {
	value, found := r.cache.Get(key)
	if !found {
		CacheMissesTotal.WithLabelValues(r.name).Inc()
		return nil, false
	}
	CacheHitsTotal.WithLabelValues(r.name).Inc()
	return value, true
}

// Set stores a value in the cache with a TTL.
func (r *RistrettoCache) Set(key string, value any, ttl time.Duration) bool {
	admitted := r.cache.SetWithTTL(key, value, 1, ttl)
	if !admitted {
		r.logger.Debug("cache-set-dropped", zap.String("key", key))
		return false
	}
	CacheSetsTotal.WithLabelValues(r.name).Inc()
	return true
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.WithLabelValues(r.name).Inc()
	r.logger.Debug("cache-delete", zap.String("key", key))
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Debug("cache-cleared")
}

// Close stops the cache's background goroutines. Logs final hit ratio.
func (r *RistrettoCache) Close() {
	if m := r.cache.Metrics; m != nil {
		r.logger.Info("cache-closed",
			zap.Uint64("hits", m.Hits()),
			zap.Uint64("misses", m.Misses()),
			zap.Float64("hit-ratio", m.Ratio()))
	}
	r.cache.Close()
}

// Wait blocks until all pending writes have been applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
