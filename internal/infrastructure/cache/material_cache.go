package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by KV.Get when the key is absent
var ErrCacheMiss = errors.New("cache: miss")

const (
	materialKeyPrefix = "printmarket:material:"
	activeMaterialKey = "printmarket:materials:active"
)

// KV is the byte-level cache the material cache stores into
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisKV adapts a Redis client to KV
type RedisKV struct {
	client redis.UniversalClient
}

// NewRedisKV wraps client
func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// CachedMaterialRepository serves material reads from the cache and falls
// through to the wrapped repository on a miss. Cache failures only cost a
// database round trip.
type CachedMaterialRepository struct {
	next   pricing.MaterialRepository
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedMaterialRepository decorates next with a read-through cache
func NewCachedMaterialRepository(next pricing.MaterialRepository, kv KV, ttl time.Duration, logger *zap.Logger) *CachedMaterialRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedMaterialRepository{next: next, kv: kv, ttl: ttl, logger: logger}
}

// FindByID returns a material, caching found rows only
func (c *CachedMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Material, error) {
	key := materialKeyPrefix + id.String()
	var cached pricing.Material
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	m, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, m)
	return m, nil
}

// FindActive returns the active material list
func (c *CachedMaterialRepository) FindActive(ctx context.Context) ([]pricing.Material, error) {
	var cached []pricing.Material
	if c.load(ctx, activeMaterialKey, &cached) {
		return cached, nil
	}

	materials, err := c.next.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, activeMaterialKey, materials)
	return materials, nil
}

// Save writes through and evicts the affected keys
func (c *CachedMaterialRepository) Save(ctx context.Context, material *pricing.Material) error {
	if err := c.next.Save(ctx, material); err != nil {
		return err
	}
	if err := c.kv.Del(ctx, materialKeyPrefix+material.ID.String(), activeMaterialKey); err != nil {
		c.logger.Warn("Failed to evict material cache",
			zap.String("material_id", material.ID.String()),
			zap.Error(err))
	}
	return nil
}

func (c *CachedMaterialRepository) load(ctx context.Context, key string, dst any) bool {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("Material cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Discarding undecodable material cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CachedMaterialRepository) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode material cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Material cache write failed", zap.String("key", key), zap.Error(fmt.Errorf("set: %w", err)))
	}
}

var (
	_ pricing.MaterialRepository = (*CachedMaterialRepository)(nil)
	_ KV                         = (*RedisKV)(nil)
)
