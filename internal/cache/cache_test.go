package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisDriver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	driver := NewRedisDriverWithClient(client, DefaultConfig())
	t.Cleanup(func() { driver.Close() })
	return driver, mr
}

// drivers returns a fresh instance of every driver, seeded with the same ids
func drivers(t *testing.T) map[string]Driver {
	t.Helper()

	memory := NewMemoryDriver(DefaultConfig())
	t.Cleanup(func() { memory.Close() })
	rd, _ := setupTestRedis(t)

	all := map[string]Driver{"memory": memory, "redis": rd}
	ctx := context.Background()
	for _, d := range all {
		for _, id := range []string{"user:1", "user:2", "article:1", "metadata:User", "metadata:Article"} {
			require.NoError(t, d.Set(ctx, id, []byte(id), time.Minute))
		}
	}
	return all
}

func TestNew(t *testing.T) {
	d, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = New(Config{Driver: "Memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDriver{}, d)
	d.Close()

	mr := miniredis.RunT(t)
	d, err = New(Config{Driver: "redis", Addr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisDriver{}, d)
	d.Close()

	_, err = New(Config{Driver: "memcached"})
	assert.Error(t, err)
}

func TestNewRedisDriver_ConnectionError(t *testing.T) {
	_, err := NewRedisDriver(Config{Addr: "localhost:99999"})
	assert.Error(t, err)
}

func TestDriver_SetAndGet(t *testing.T) {
	for name, d := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			value, err := d.Get(ctx, "user:1")
			require.NoError(t, err)
			assert.Equal(t, []byte("user:1"), value)

			_, err = d.Get(ctx, "nonexistent")
			assert.True(t, IsCacheMiss(err))
		})
	}
}

func TestDriver_Delete(t *testing.T) {
	tests := []struct {
		name     string
		delete   func(context.Context, Driver) ([]string, error)
		expected []string
	}{
		{
			name:     "exact id",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.Delete(ctx, "user:1") },
			expected: []string{"user:1"},
		},
		{
			name:     "missing id",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.Delete(ctx, "user:9") },
			expected: []string{},
		},
		{
			name:     "wildcard id",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.Delete(ctx, "*:1") },
			expected: []string{"article:1", "user:1"},
		},
		{
			name:     "regex",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.DeleteByRegex(ctx, `^user:\d$`) },
			expected: []string{"user:1", "user:2"},
		},
		{
			name:     "prefix",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.DeleteByPrefix(ctx, "metadata:") },
			expected: []string{"metadata:Article", "metadata:User"},
		},
		{
			name:     "suffix",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.DeleteBySuffix(ctx, "User") },
			expected: []string{"metadata:User"},
		},
		{
			name:     "all",
			delete:   func(ctx context.Context, d Driver) ([]string, error) { return d.DeleteAll(ctx) },
			expected: []string{"article:1", "metadata:Article", "metadata:User", "user:1", "user:2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, d := range drivers(t) {
				t.Run(name, func(t *testing.T) {
					ctx := context.Background()

					deleted, err := tt.delete(ctx, d)
					require.NoError(t, err)
					assert.Equal(t, tt.expected, deleted)

					for _, id := range tt.expected {
						_, err := d.Get(ctx, id)
						assert.True(t, IsCacheMiss(err), id)
					}

					// Deleting again finds nothing
					again, err := tt.delete(ctx, d)
					require.NoError(t, err)
					assert.Empty(t, again)
				})
			}
		})
	}
}

func TestDriver_InvalidRegex(t *testing.T) {
	for name, d := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := d.DeleteByRegex(context.Background(), "(")
			assert.Error(t, err)
		})
	}
}

func TestRedisDriver_IgnoresForeignKeys(t *testing.T) {
	d, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:user:1", "x"))
	require.NoError(t, d.Set(ctx, "user:1", []byte("y"), time.Minute))

	deleted, err := d.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, deleted)
	assert.True(t, mr.Exists("other:user:1"))
}

func TestRedisDriver_TTLExpiration(t *testing.T) {
	d, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	mr.FastForward(100 * time.Millisecond)

	_, err := d.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryDriver_Expiration(t *testing.T) {
	d := NewMemoryDriver(Config{})
	defer d.Close()
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "short", []byte("v"), time.Millisecond))
	require.NoError(t, d.Set(ctx, "forever", []byte("v"), -1))
	time.Sleep(5 * time.Millisecond)

	_, err := d.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))

	deleted, err := d.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, deleted)
}

func TestMemoryDriver_ContextCancelled(t *testing.T) {
	d := NewMemoryDriver(DefaultConfig())
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = d.DeleteAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
