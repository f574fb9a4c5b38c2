// Package cache provides the drivers behind the query, result and metadata
// caches.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Driver defines the interface for all cache backends. The delete operations
// return the ids of the removed entries.
type Driver interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, id string) ([]byte, error)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, id string, value []byte, ttl time.Duration) error

	// Delete removes the entries matching id, which accepts * wildcards
	Delete(ctx context.Context, id string) ([]string, error)

	// DeleteByRegex removes the entries whose id matches pattern
	DeleteByRegex(ctx context.Context, pattern string) ([]string, error)

	// DeleteByPrefix removes the entries whose id starts with prefix
	DeleteByPrefix(ctx context.Context, prefix string) ([]string, error)

	// DeleteBySuffix removes the entries whose id ends with suffix
	DeleteBySuffix(ctx context.Context, suffix string) ([]string, error)

	// DeleteAll removes every entry
	DeleteAll(ctx context.Context) ([]string, error)

	// Close releases the driver's resources
	Close() error
}

// Config holds the configuration of one cache
type Config struct {
	// Driver is "memory" or "redis"; empty disables the cache
	Driver string `mapstructure:"driver"`
	// Addr is the Redis server address (host:port)
	Addr string `mapstructure:"addr"`
	// Password is the Redis password (optional)
	Password string `mapstructure:"password"`
	// DB is the Redis database number
	DB int `mapstructure:"db"`
	// Prefix is prepended to all cache ids
	Prefix string `mapstructure:"prefix"`
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Driver:     "memory",
		Addr:       "localhost:6379",
		Prefix:     "tablemap:",
		DefaultTTL: 5 * time.Minute,
	}
}

// New creates the driver named by the config. A config without a driver
// yields a nil driver and no error.
func New(config Config) (Driver, error) {
	switch strings.ToLower(config.Driver) {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryDriver(config), nil
	case "redis":
		driver, err := NewRedisDriver(config)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", config.Driver)
	}
}

// ErrCacheMiss is returned when an id is not found in the cache
type ErrCacheMiss struct {
	ID string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.ID
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}

// matcher reports whether an unprefixed id is selected for deletion
type matcher func(id string) bool

func wildcardMatcher(id string) (matcher, error) {
	if !strings.Contains(id, "*") {
		return func(candidate string) bool { return candidate == id }, nil
	}

	parts := strings.Split(id, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexMatcher("^" + strings.Join(parts, ".*") + "$")
}

func regexMatcher(pattern string) (matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

func prefixMatcher(prefix string) matcher {
	return func(id string) bool { return strings.HasPrefix(id, prefix) }
}

func suffixMatcher(suffix string) matcher {
	return func(id string) bool { return strings.HasSuffix(id, suffix) }
}

func matchAll(string) bool { return true }

func sorted(ids []string) []string {
	sort.Strings(ids)
	return ids
}
