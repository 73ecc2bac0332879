package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "http://localhost:5000")
	t.Setenv("FEED_URL", "ws://localhost:5000/events")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Remote.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Feed.MinBackoff != time.Second || cfg.Feed.MaxBackoff != 30*time.Second {
		t.Fatalf("backoff = %v..%v", cfg.Feed.MinBackoff, cfg.Feed.MaxBackoff)
	}
	if cfg.Cache.Path != "storemirror.db" {
		t.Fatalf("cache path = %q", cfg.Cache.Path)
	}
	if cfg.Metrics.Enabled {
		t.Fatalf("metrics enabled by default")
	}
}

func TestLoadRequiresRemote(t *testing.T) {
	t.Setenv("FEED_URL", "ws://localhost:5000/events")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing REMOTE_BASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "http://catalog:5000")
	t.Setenv("FEED_URL", "ws://catalog:5000/events")
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("CACHE_DATABASE_URL", "postgres://mirror@db/cache")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Remote.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Cache.DatabaseURL == "" {
		t.Fatalf("database url not picked up")
	}
}
