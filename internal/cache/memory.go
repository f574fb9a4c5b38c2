package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryDriver implements an in-memory cache with TTL support
type MemoryDriver struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

// entry represents an item stored in the cache
type entry struct {
	value      []byte
	expiration time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// NewMemoryDriver creates a new in-memory cache
func NewMemoryDriver(config Config) *MemoryDriver {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryDriver{
		config: config,
		cancel: cancel,
	}

	go m.cleanupExpired(ctx)

	return m
}

// Get retrieves a value from the cache
func (m *MemoryDriver) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := m.config.Prefix + id
	value, ok := m.data.Load(key)
	if !ok {
		return nil, ErrCacheMiss{ID: id}
	}

	item := value.(entry)
	if item.expired(time.Now()) {
		m.data.Delete(key)
		return nil, ErrCacheMiss{ID: id}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryDriver) Set(ctx context.Context, id string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := entry{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	m.data.Store(m.config.Prefix+id, item)
	return nil
}

// Delete removes the entries matching id
func (m *MemoryDriver) Delete(ctx context.Context, id string) ([]string, error) {
	match, err := wildcardMatcher(id)
	if err != nil {
		return nil, err
	}
	return m.deleteMatching(ctx, match)
}

// DeleteByRegex removes the entries whose id matches pattern
func (m *MemoryDriver) DeleteByRegex(ctx context.Context, pattern string) ([]string, error) {
	match, err := regexMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return m.deleteMatching(ctx, match)
}

// DeleteByPrefix removes the entries whose id starts with prefix
func (m *MemoryDriver) DeleteByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return m.deleteMatching(ctx, prefixMatcher(prefix))
}

// DeleteBySuffix removes the entries whose id ends with suffix
func (m *MemoryDriver) DeleteBySuffix(ctx context.Context, suffix string) ([]string, error) {
	return m.deleteMatching(ctx, suffixMatcher(suffix))
}

// DeleteAll removes every entry
func (m *MemoryDriver) DeleteAll(ctx context.Context) ([]string, error) {
	return m.deleteMatching(ctx, matchAll)
}

func (m *MemoryDriver) deleteMatching(ctx context.Context, match matcher) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	deleted := []string{}
	m.data.Range(func(key, value interface{}) bool {
		k := key.(string)
		id, ok := strings.CutPrefix(k, m.config.Prefix)
		if !ok {
			return true
		}
		if value.(entry).expired(now) {
			m.data.Delete(k)
			return true
		}
		if match(id) {
			m.data.Delete(k)
			deleted = append(deleted, id)
		}
		return true
	})

	return sorted(deleted), nil
}

// Close stops the background cleanup goroutine
func (m *MemoryDriver) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// cleanupExpired periodically removes expired items from the cache
func (m *MemoryDriver) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.data.Range(func(key, value interface{}) bool {
				if value.(entry).expired(now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
