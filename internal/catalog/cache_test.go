package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Ping(context.Context) error { return nil }
func (m *memKV) Close() error               { return nil }

func (m *memKV) put(t *testing.T, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}

func (m *memKV) stored(t *testing.T, key string) []Product {
	t.Helper()
	m.mu.Lock()
	raw := m.data[key]
	m.mu.Unlock()
	if raw == nil {
		return nil
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		t.Fatalf("unmarshal stored cache: %v", err)
	}
	return products
}

func TestCacheLoadMissing(t *testing.T) {
	c := NewCache(newMemKV(), zap.NewNop())

	if got := c.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty, got %+v", got)
	}
}

func TestCacheLoadCorrupt(t *testing.T) {
	kv := newMemKV()
	kv.data[cacheKey] = []byte("{not json")

	c := NewCache(kv, zap.NewNop())
	if got := c.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty on corrupt entry, got %+v", got)
	}
}

func TestCacheLoadReadError(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk gone")

	c := NewCache(kv, zap.NewNop())
	if got := c.Load(context.Background()); got != nil {
		t.Fatalf("expected nil on read error, got %+v", got)
	}
}

func TestCacheSaveThenLoad(t *testing.T) {
	kv := newMemKV()
	c := NewCache(kv, zap.NewNop())

	want := []Product{
		{ID: 1, Name: "Mug", Price: 9.99},
		{ID: 2, Name: "Pen", Price: 1.5, Description: "blue ink"},
	}
	if err := c.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := c.Load(context.Background())
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}
