package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pdo/internal/model"
)

// Cache memoizes generated datasets by generator key. A miss returns
// ok=false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (model.Dataset, bool, error)
	Set(ctx context.Context, key string, ds model.Dataset) error
}

// MemoryCache keeps datasets for the life of the process. Returned datasets
// share backing arrays; callers must not mutate them.
type MemoryCache struct {
	mu sync.Mutex
	m  map[string]model.Dataset
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]model.Dataset)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (model.Dataset, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.m[key]
	return ds, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, ds model.Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = ds
	return nil
}

// redisClient is the subset of *redis.Client we use; tests substitute a fake.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares generated datasets between dashboard replicas.
type RedisCache struct {
	rdb redisClient
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (model.Dataset, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Dataset{}, false, nil
	}
	if err != nil {
		return model.Dataset{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var ds model.Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return model.Dataset{}, false, fmt.Errorf("decode cached dataset: %w", err)
	}
	return ds, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, ds model.Dataset) error {
	b, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GeneratorSource serves the simulated dataset, generating it at most once
// per key while the cache holds it.
type GeneratorSource struct {
	gen   Generator
	cache Cache
	log   *zap.Logger
}

// NewGeneratorSource builds a memoized generator source. A nil cache
// regenerates on every load.
func NewGeneratorSource(gen Generator, cache Cache, log *zap.Logger) *GeneratorSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeneratorSource{gen: gen, cache: cache, log: log}
}

func (s *GeneratorSource) Name() string { return "generator" }

// Load never fails on cache errors; they are logged and the dataset is
// regenerated.
func (s *GeneratorSource) Load(ctx context.Context) (model.Dataset, error) {
	key := s.gen.Key()
	if s.cache != nil {
		ds, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("dataset cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return ds, nil
		}
	}
	ds := s.gen.Generate()
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ds); err != nil {
			s.log.Warn("dataset cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return ds, nil
}
