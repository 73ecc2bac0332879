package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBoltKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")

	kv, err := OpenBoltKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	ctx := context.Background()

	got, err := kv.Get(ctx, "absent")
	if err != nil || got != nil {
		t.Fatalf("absent key: got=%v err=%v", got, err)
	}

	if err := kv.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err = kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q, want v2", got)
	}

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
