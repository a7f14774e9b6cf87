package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/risa-org/gateway/session"
)

// DefaultTTL keeps a checkpoint around long enough for a restart, not
// forever: servers forget sessions too.
const DefaultTTL = 15 * time.Minute

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys, default "gateway".
	Prefix string
	// TTL bounds how long a checkpoint lives, zero means DefaultTTL.
	TTL time.Duration
}

// Store is a Redis-backed implementation of session.CheckpointStore.
// Lets several processes, or a replacement process on another host, pick
// up a session saved by a previous owner.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return NewWithClient(rdb, cfg.Prefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "gateway"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("%s:checkpoint:%s", s.prefix, k)
}

// Save stores cp with the configured TTL, replacing any previous value.
func (s *Store) Save(ctx context.Context, cp session.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cp.Key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for key. A missing or expired key is not an
// error, ok is false.
func (s *Store) Load(ctx context.Context, key string) (session.Checkpoint, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return session.Checkpoint{}, false, nil
	}
	if err != nil {
		return session.Checkpoint{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp session.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return session.Checkpoint{}, false, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, true, nil
}

// Delete removes the checkpoint for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
