package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var cacheTracer = otel.Tracer("redis.cache")

// 缓存键
func MatchKey(matchID string) string     { return "match:" + matchID }
func SegmentKey(segmentID string) string { return "segment:" + segmentID }

// Cache JSON 值缓存
type Cache struct {
	client *Client
	group  singleflight.Group
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get 读取并反序列化；未命中返回 found=false
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return false, nil
		}
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.rdb.Set(ctx, key, data, ttl).Err()
}

// GetOrLoadSafe 读穿缓存，singleflight 合并同一键的并发加载。
// loader 返回 nil 时不写缓存（避免缓存不存在的记录），返回 nil 字节。
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	if err != redis.Nil {
		// Redis 不可用时直接回源
		span.RecordError(err)
		return c.load(ctx, "", ttl, loader)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		if val, err := c.client.rdb.Get(ctx, key).Bytes(); err == nil {
			return val, nil
		}
		return c.load(ctx, key, ttl, loader)
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.([]byte), nil
}

// load 调用 loader，key 非空时写入缓存；写缓存失败不影响返回
func (c *Cache) load(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) ([]byte, error) {
	data, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	if key != "" {
		_ = c.client.rdb.Set(ctx, key, raw, ttl).Err()
	}
	return raw, nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))))
	defer span.End()

	return c.client.rdb.Del(ctx, keys...).Err()
}
