package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Remote  RemoteConfig  `envPrefix:"REMOTE_"`
	Feed    FeedConfig    `envPrefix:"FEED_"`
	Cache   CacheConfig   `envPrefix:"CACHE_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:":8090"`
}

type RemoteConfig struct {
	BaseURL string        `env:"BASE_URL,required"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type FeedConfig struct {
	URL        string        `env:"URL,required"`
	MinBackoff time.Duration `env:"MIN_BACKOFF" envDefault:"1s"`
	MaxBackoff time.Duration `env:"MAX_BACKOFF" envDefault:"30s"`
}

type CacheConfig struct {
	// Path is the bolt file used by default.
	Path string `env:"PATH" envDefault:"storemirror.db"`

	// DatabaseURL switches the cache to the shared Postgres backend.
	DatabaseURL string `env:"DATABASE_URL"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Token   string `env:"TOKEN"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
