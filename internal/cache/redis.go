package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanCount is the batch size hint passed to SCAN
const scanCount = 100

// RedisDriver implements a Redis-backed cache
type RedisDriver struct {
	client *redis.Client
	config Config
}

// NewRedisDriver connects to the server named by the config
func NewRedisDriver(config Config) (*RedisDriver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisDriverWithClient(client, config), nil
}

// NewRedisDriverWithClient creates a Redis cache with an existing client
func NewRedisDriverWithClient(client *redis.Client, config Config) *RedisDriver {
	return &RedisDriver{
		client: client,
		config: config,
	}
}

// Get retrieves a value from the cache
func (r *RedisDriver) Get(ctx context.Context, id string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.config.Prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{ID: id}
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value in the cache with a TTL
func (r *RedisDriver) Set(ctx context.Context, id string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	return r.client.Set(ctx, r.config.Prefix+id, value, ttl).Err()
}

// Delete removes the entries matching id. Wildcards are handed to SCAN
// MATCH; everything else in id is matched literally.
func (r *RedisDriver) Delete(ctx context.Context, id string) ([]string, error) {
	if !strings.Contains(id, "*") {
		n, err := r.client.Del(ctx, r.config.Prefix+id).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []string{}, nil
		}
		return []string{id}, nil
	}

	parts := strings.Split(id, "*")
	for i, p := range parts {
		parts[i] = escapeGlob(p)
	}
	return r.deleteMatching(ctx, strings.Join(parts, "*"), matchAll)
}

// DeleteByRegex removes the entries whose id matches pattern
func (r *RedisDriver) DeleteByRegex(ctx context.Context, pattern string) ([]string, error) {
	match, err := regexMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return r.deleteMatching(ctx, "*", match)
}

// DeleteByPrefix removes the entries whose id starts with prefix
func (r *RedisDriver) DeleteByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.deleteMatching(ctx, escapeGlob(prefix)+"*", matchAll)
}

// DeleteBySuffix removes the entries whose id ends with suffix
func (r *RedisDriver) DeleteBySuffix(ctx context.Context, suffix string) ([]string, error) {
	return r.deleteMatching(ctx, "*"+escapeGlob(suffix), matchAll)
}

// DeleteAll removes every entry under the driver's prefix
func (r *RedisDriver) DeleteAll(ctx context.Context) ([]string, error) {
	return r.deleteMatching(ctx, "*", matchAll)
}

// deleteMatching scans the keys matching glob below the prefix and deletes
// those whose id also satisfies match
func (r *RedisDriver) deleteMatching(ctx context.Context, glob string, match matcher) ([]string, error) {
	deleted := []string{}

	iter := r.client.Scan(ctx, 0, escapeGlob(r.config.Prefix)+glob, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := strings.TrimPrefix(key, r.config.Prefix)
		if !match(id) {
			continue
		}

		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		// SCAN may return a key more than once
		if n > 0 {
			deleted = append(deleted, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return sorted(deleted), nil
}

// Close closes the Redis connection
func (r *RedisDriver) Close() error {
	return r.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
