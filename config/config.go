// Package config loads gatewayctl settings.
//
// Sources, later ones win:
//
//	defaults
//	TOML file (optional)
//	.env file (optional, never overrides variables already set)
//	GATEWAY_* environment variables
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/risa-org/gateway/gateway"
	"github.com/risa-org/gateway/logging"
	"github.com/risa-org/gateway/session"
	"github.com/risa-org/gateway/store/file"
	"github.com/risa-org/gateway/store/memory"
	"github.com/risa-org/gateway/store/redis"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GATEWAY_"

// Checkpoint store kinds.
const (
	StoreNone   = ""
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// File is the full configuration.
type File struct {
	URL   string `toml:"url" env:"URL"`
	Token string `toml:"token" env:"TOKEN"`
	Debug bool   `toml:"debug" env:"DEBUG"`

	HandshakeTimeout     time.Duration `toml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	ResumeTimeout        time.Duration `toml:"resume_timeout" env:"RESUME_TIMEOUT"`
	Reconnect            bool          `toml:"reconnect" env:"RECONNECT"`
	MaxReconnectAttempts int           `toml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	SendRate             float64       `toml:"send_rate" env:"SEND_RATE"`
	SendBurst            int           `toml:"send_burst" env:"SEND_BURST"`
	QueueSize            int           `toml:"queue_size" env:"QUEUE_SIZE"`

	Backoff    Backoff    `toml:"backoff" envPrefix:"BACKOFF_"`
	Log        Log        `toml:"log" envPrefix:"LOG_"`
	Checkpoint Checkpoint `toml:"checkpoint" envPrefix:"CHECKPOINT_"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `toml:"metrics_addr" env:"METRICS_ADDR"`
}

type Backoff struct {
	InitialDelay time.Duration `toml:"initial_delay" env:"INITIAL_DELAY"`
	Multiplier   float64       `toml:"multiplier" env:"MULTIPLIER"`
	MaxDelay     time.Duration `toml:"max_delay" env:"MAX_DELAY"`
	Jitter       bool          `toml:"jitter" env:"JITTER"`
}

// Log mirrors logging.Options. GATEWAY_LOG_* is also read by logging.New.
type Log struct {
	Level   string `toml:"level" env:"LEVEL"`
	Format  string `toml:"format" env:"FORMAT"`
	NoColor bool   `toml:"no_color" env:"NOCOLOR"`
}

// Checkpoint selects where resumable sessions are kept.
type Checkpoint struct {
	Store string `toml:"store" env:"STORE"`
	Key   string `toml:"key" env:"KEY"`
	// Path is the JSON file for the file store.
	Path string `toml:"path" env:"PATH"`

	RedisAddr     string        `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `toml:"redis_db" env:"REDIS_DB"`
	RedisPrefix   string        `toml:"redis_prefix" env:"REDIS_PREFIX"`
	TTL           time.Duration `toml:"ttl" env:"TTL"`
}

// Default returns the configuration before any source is applied.
func Default() File {
	g := gateway.DefaultConfig()
	return File{
		HandshakeTimeout:     g.HandshakeTimeout,
		ResumeTimeout:        g.ResumeTimeout,
		Reconnect:            g.Reconnect,
		MaxReconnectAttempts: g.MaxReconnectAttempts,
		SendRate:             g.SendRate,
		SendBurst:            g.SendBurst,
		QueueSize:            g.QueueSize,
		Backoff: Backoff{
			InitialDelay: g.Backoff.InitialDelay,
			Multiplier:   g.Backoff.Multiplier,
			MaxDelay:     g.Backoff.MaxDelay,
			Jitter:       g.Backoff.Jitter,
		},
		Log: Log{Level: "info", Format: "console"},
		Checkpoint: Checkpoint{
			Key:         "default",
			RedisPrefix: "gateway",
			TTL:         redis.DefaultTTL,
		},
	}
}

// Load applies every source on top of Default. Empty paths are skipped,
// as is a missing .env file.
func Load(path, envFile string) (File, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return File{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return File{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return File{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Checkpoint.Store = strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Store))
	return cfg, nil
}

// Validate checks the loaded configuration.
// The URL may be empty when the session comes from a checkpoint.
func (f File) Validate() error {
	if f.URL != "" {
		if err := gateway.ValidateURL(f.URL); err != nil {
			return err
		}
	}
	if err := f.Gateway().Validate(); err != nil {
		return err
	}

	switch f.Checkpoint.Store {
	case StoreNone, StoreMemory:
	case StoreFile:
		if f.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint store %q needs a path", StoreFile)
		}
	case StoreRedis:
		if f.Checkpoint.RedisAddr == "" {
			return fmt.Errorf("checkpoint store %q needs redis_addr", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown checkpoint store %q", f.Checkpoint.Store)
	}
	if f.Checkpoint.Store != StoreNone && f.Checkpoint.Key == "" {
		return fmt.Errorf("checkpoint key is required")
	}
	return nil
}

// Gateway maps the file onto the client configuration.
func (f File) Gateway() gateway.Config {
	return gateway.Config{
		HandshakeTimeout:     f.HandshakeTimeout,
		ResumeTimeout:        f.ResumeTimeout,
		Reconnect:            f.Reconnect,
		MaxReconnectAttempts: f.MaxReconnectAttempts,
		Backoff: gateway.BackoffConfig{
			InitialDelay: f.Backoff.InitialDelay,
			Multiplier:   f.Backoff.Multiplier,
			MaxDelay:     f.Backoff.MaxDelay,
			Jitter:       f.Backoff.Jitter,
		},
		SendRate:  f.SendRate,
		SendBurst: f.SendBurst,
		QueueSize: f.QueueSize,
		Debug:     f.Debug,
	}
}

// Logging maps the log section onto logging.Options.
func (f File) Logging(app string) logging.Options {
	return logging.Options{
		App:     app,
		Level:   f.Log.Level,
		Format:  f.Log.Format,
		NoColor: f.Log.NoColor,
		Out:     os.Stderr,
	}
}

// OpenStore builds the configured checkpoint store. It returns nil for
// StoreNone. The close func is never nil.
func (c Checkpoint) OpenStore(ctx context.Context) (session.CheckpointStore, func() error, error) {
	noop := func() error { return nil }

	switch c.Store {
	case StoreNone:
		return nil, noop, nil
	case StoreMemory:
		return memory.New(), noop, nil
	case StoreFile:
		s, err := file.New(c.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case StoreRedis:
		s, err := redis.New(ctx, redis.Config{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
			TTL:      c.TTL,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown checkpoint store %q", c.Store)
	}
}
