package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the token between processes through Redis and publishes
// a change message on every write.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to all keys (default: "petflix:")
	KeyPrefix string
}

// NewRedisStore wraps an existing client. prefix typically ends with a colon.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "petflix:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisStoreFromConfig dials Redis and verifies the connection.
func NewRedisStoreFromConfig(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}
	return NewRedisStore(client, cfg.KeyPrefix), nil
}

func (s *RedisStore) key() string     { return s.prefix + "token" }
func (s *RedisStore) channel() string { return s.prefix + "token:changed" }

// Load returns the shared token.
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: failed to get token: %w", err)
	}
	return val, nil
}

// Save stores the token. JWTs expire in Redis together with their exp claim.
func (s *RedisStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if exp, ok := TokenExpiry(token); ok {
		ttl = exp.Sub(s.now())
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}
	if err := s.client.Set(ctx, s.key(), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set token: %w", err)
	}
	return s.publish(ctx)
}

// Clear deletes the shared token.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete token: %w", err)
	}
	return s.publish(ctx)
}

func (s *RedisStore) publish(ctx context.Context) error {
	if err := s.client.Publish(ctx, s.channel(), "1").Err(); err != nil {
		return fmt.Errorf("redis: failed to publish change: %w", err)
	}
	return nil
}

// Watch subscribes to change messages published by any store sharing the prefix.
func (s *RedisStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
