package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 3
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// RedisClient wraps the Redis operations the service needs: the reward event
// stream and the short-TTL ranking cache.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client from an address or redis:// URL.
func NewRedisClient(addr string) *RedisClient {
	poolSize := getEnvInt("REDIS_POOL_SIZE", defaultPoolSize)
	minIdle := getEnvInt("REDIS_MIN_IDLE_CONNS", defaultMinIdleConns)
	dialTimeout := time.Duration(getEnvInt("REDIS_DIAL_TIMEOUT_MS", int(defaultDialTimeout/time.Millisecond))) * time.Millisecond
	readTimeout := time.Duration(getEnvInt("REDIS_READ_TIMEOUT_MS", int(defaultReadTimeout/time.Millisecond))) * time.Millisecond
	writeTimeout := time.Duration(getEnvInt("REDIS_WRITE_TIMEOUT_MS", int(defaultWriteTimeout/time.Millisecond))) * time.Millisecond

	opts := &redis.Options{
		Addr: addr,
		DB:   0,
	}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if parsed, err := redis.ParseURL(addr); err == nil {
			opts = parsed
		}
	}

	if opts.Password == "" {
		opts.Password = os.Getenv("REDIS_PASSWORD")
	}
	if opts.TLSConfig == nil {
		if strings.HasPrefix(addr, "rediss://") || getEnvBool("REDIS_TLS", false) {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
	}
	opts.PoolSize = poolSize
	opts.MinIdleConns = minIdle
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout

	return &RedisClient{client: redis.NewClient(opts)}
}

// Ping verifies the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// XAdd appends one entry to a stream and returns the entry id.
func (r *RedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) (string, error) {
	return r.client.XAdd(ctx, args).Result()
}

// Get returns the cached value, or ("", false, nil) on a miss.
func (r *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a value with a TTL.
func (r *RedisClient) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Del removes keys. Used to drop stale ranking cache entries after a rewrite.
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}
