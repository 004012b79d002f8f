package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from GOVERNOR_* environment variables.
type Config struct {
	App        AppConfig        `envPrefix:"GOVERNOR_"`
	Dispatcher DispatcherConfig `envPrefix:"GOVERNOR_DISPATCH_"`
	Store      StoreConfig      `envPrefix:"GOVERNOR_STORE_"`
	Redis      RedisConfig      `envPrefix:"GOVERNOR_REDIS_"`
}

type AppConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr     string        `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	SigningSecret   string        `env:"SIGNING_SECRET"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	NoiseFloor      float64       `env:"PRICE_NOISE_FLOOR" envDefault:"0"`
	MaxPayloadBytes int           `env:"MAX_PAYLOAD_BYTES" envDefault:"65536"`
}

type DispatcherConfig struct {
	Workers     int           `env:"WORKERS" envDefault:"4"`
	QueueSize   int           `env:"QUEUE_SIZE" envDefault:"1000"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	Backoff     time.Duration `env:"BACKOFF" envDefault:"200ms"`
}

// StoreConfig selects the decision audit store. An empty path keeps
// decisions in memory.
type StoreConfig struct {
	SQLitePath string `env:"SQLITE_PATH"`
}

// RedisConfig enables publishing directives when Addr is set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Channel  string `env:"CHANNEL" envDefault:"governance_directives"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// LoadWith parses from an explicit environment map instead of the process
// environment.
func LoadWith(environment map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("GOVERNOR_HTTP_ADDR is required")
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("GOVERNOR_DISPATCH_WORKERS must be positive")
	}
	if c.Dispatcher.QueueSize <= 0 {
		return fmt.Errorf("GOVERNOR_DISPATCH_QUEUE_SIZE must be positive")
	}
	if c.Dispatcher.MaxAttempts <= 0 {
		return fmt.Errorf("GOVERNOR_DISPATCH_MAX_ATTEMPTS must be positive")
	}
	if c.App.NoiseFloor < 0 {
		return fmt.Errorf("GOVERNOR_PRICE_NOISE_FLOOR cannot be negative")
	}
	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		return err
	}
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
