package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store is the in-memory source of truth for rendering. Its snapshot is
// seeded from the cache at construction (cache-first paint) and mutated only
// by whole-snapshot replacement during a refresh.
type Store struct {
	log   *zap.Logger
	cache *Cache

	mu       sync.RWMutex
	products []Product
}

// NewStore seeds the snapshot from the cache. A missing or corrupt cache
// entry seeds an empty list; construction never fails on cache state.
func NewStore(ctx context.Context, cache *Cache, log *zap.Logger) *Store {
	return &Store{
		log:      log,
		cache:    cache,
		products: cache.Load(ctx),
	}
}

// Snapshot returns a copy of the current best-known product list, in server
// order. Never blocks on network or disk.
func (s *Store) Snapshot() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Replace atomically swaps the snapshot and writes it through to the cache.
// The caller hands over ownership of products. A failed write-through does
// not roll back the swap: memory is authoritative, the cache is best-effort
// durability.
func (s *Store) Replace(ctx context.Context, products []Product) {
	s.mu.Lock()
	s.products = products
	s.mu.Unlock()

	if err := s.cache.Save(ctx, products); err != nil {
		s.log.Warn("cache write-through failed", zap.Error(err), zap.Int("products", len(products)))
	}
}
