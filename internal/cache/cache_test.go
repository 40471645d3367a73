package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCacheSuite 两种缓存实现共用的行为测试
func runCacheSuite(t *testing.T, c Cache, expire func(time.Duration)) {
	ctx := context.Background()

	// 测试Set和Get
	require.NoError(t, c.Set(ctx, "key1", "value1", 0))
	val, found, err := c.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	// 测试不存在的键
	val, found, err = c.Get(ctx, "non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试过期
	require.NoError(t, c.Set(ctx, "expire-soon", "temp", 100*time.Millisecond))
	expire(200 * time.Millisecond)
	_, found, err = c.Get(ctx, "expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 测试删除
	require.NoError(t, c.Set(ctx, "to-delete", "x", 0))
	require.NoError(t, c.Delete(ctx, "to-delete"))
	_, found, _ = c.Get(ctx, "to-delete")
	assert.False(t, found)

	// 测试清空
	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Clear(ctx))
	_, found, _ = c.Get(ctx, "a")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "b")
	assert.False(t, found)
}

// TestMemoryCache 测试内存缓存
func TestMemoryCache(t *testing.T) {
	c, err := NewMemoryCache(Config{DefaultTTL: time.Minute, CleanupInterval: time.Minute})
	require.NoError(t, err)

	runCacheSuite(t, c, time.Sleep)
}

// TestRedisCache 使用miniredis测试Redis缓存
func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		KeyPrefix:  "test",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)

	// Clear不应影响其他前缀的键
	require.NoError(t, mr.Set("other:key", "keep"))

	runCacheSuite(t, c, mr.FastForward)

	assert.True(t, mr.Exists("other:key"))

	require.NoError(t, c.Set(context.Background(), "ttl-default", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("test:ttl-default"))
}

// TestRedisCacheUnavailable Redis不可用时返回错误
func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(Config{RedisAddr: addr})
	assert.Error(t, err)
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	memCache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, memCache)

	mr := miniredis.RunT(t)
	redisCache, err := NewCache(Config{Type: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, redisCache)

	// 未知类型回退为内存缓存
	unknownCache, err := NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, unknownCache)
}

// TestGenerateCacheKey 测试缓存键生成
func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:a:b", GenerateCacheKey("prefix", "a", "b"))
}

// TestChunkCache 测试分块结果的缓存
func TestChunkCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(DefaultConfig())
	require.NoError(t, err)

	params := ChunkParams{MinSize: 500, MaxSize: 800, Overlap: 125}
	key := ChunkKey("some text", params)

	t.Run("key depends on text and params", func(t *testing.T) {
		assert.Equal(t, key, ChunkKey("some text", params))
		assert.NotEqual(t, key, ChunkKey("other text", params))

		changed := params
		changed.Overlap = 100
		assert.NotEqual(t, key, ChunkKey("some text", changed))

		changed = params
		changed.KeepShortTail = true
		assert.NotEqual(t, key, ChunkKey("some text", changed))
	})

	t.Run("round trip", func(t *testing.T) {
		_, found, err := GetChunks(ctx, c, key)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, SetChunks(ctx, c, key, []string{"a", "b"}, 0))
		chunks, found, err := GetChunks(ctx, c, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"a", "b"}, chunks)
	})

	t.Run("empty list is a hit", func(t *testing.T) {
		emptyKey := ChunkKey("", params)
		require.NoError(t, SetChunks(ctx, c, emptyKey, nil, 0))
		chunks, found, err := GetChunks(ctx, c, emptyKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, chunks)
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "broken", "{not json", 0))
		_, found, err := GetChunks(ctx, c, "broken")
		require.NoError(t, err)
		assert.False(t, found)

		_, found, _ = c.Get(ctx, "broken")
		assert.False(t, found)
	})
}
