package catalog

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const cacheKey = "catalog/products"

// KV is the byte store the cache persists through. Get returns nil with no
// error when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Cache persists the last-known-good product list. Entries never expire:
// whatever is stored stays valid until the next successful refresh overwrites
// it, no matter its age.
type Cache struct {
	kv  KV
	log *zap.Logger
}

func NewCache(kv KV, log *zap.Logger) *Cache {
	return &Cache{kv: kv, log: log}
}

// Load returns the persisted snapshot, or nil when there is none. Unreadable
// or corrupt data is treated as no cache; startup must never fail on it.
func (c *Cache) Load(ctx context.Context) []Product {
	raw, err := c.kv.Get(ctx, cacheKey)
	if err != nil {
		c.log.Warn("cache read failed, starting empty", zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.log.Warn("cache entry corrupt, starting empty", zap.Error(err))
		return nil
	}
	return products
}

// Save writes the snapshot through to the store. Failures are for logging
// only; the in-memory snapshot stays authoritative either way.
func (c *Cache) Save(ctx context.Context, products []Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, cacheKey, raw)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.kv.Ping(ctx)
}
