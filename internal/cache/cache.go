package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache 缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

// 注册的缓存实现
var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	// 默认使用内存缓存
	return NewMemoryCache(config)
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "memory", "redis"
	Type string
	// Redis连接地址 (仅Redis缓存使用)
	RedisAddr string
	// Redis密码 (仅Redis缓存使用)
	RedisPassword string
	// Redis数据库编号 (仅Redis缓存使用)
	RedisDB int
	// 键前缀，Clear只清理带此前缀的键
	KeyPrefix string
	// 默认缓存过期时间
	DefaultTTL time.Duration
	// 自动清理间隔时间 (仅内存缓存使用)
	CleanupInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		KeyPrefix:       "goalmap",
		DefaultTTL:      time.Hour * 24,
		CleanupInterval: time.Minute * 10,
	}
}

// GenerateCacheKey 生成标准化的缓存键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// ChunkParams 影响分块结果的参数，作为缓存键的一部分
type ChunkParams struct {
	MinSize       int
	MaxSize       int
	Overlap       int
	KeepShortTail bool
}

// ChunkKey 由文本摘要和分块参数生成缓存键
func ChunkKey(text string, params ChunkParams) string {
	sum := sha256.Sum256([]byte(text))
	return GenerateCacheKey("chunks",
		hex.EncodeToString(sum[:]),
		fmt.Sprintf("%d-%d-%d-%t", params.MinSize, params.MaxSize, params.Overlap, params.KeepShortTail),
	)
}

// GetChunks 读取缓存的分块列表
func GetChunks(ctx context.Context, c Cache, key string) ([]string, bool, error) {
	value, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	var chunks []string
	if err := json.Unmarshal([]byte(value), &chunks); err != nil {
		// 损坏的缓存项按未命中处理
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks, true, nil
}

// SetChunks 以JSON编码写入分块列表
func SetChunks(ctx context.Context, c Cache, key string, chunks []string, ttl time.Duration) error {
	if chunks == nil {
		chunks = []string{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}
