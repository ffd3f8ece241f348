package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/redis/go-redis/v9"
	"github.com/removerio/removerio/config"
	"github.com/removerio/removerio/model"
	"github.com/removerio/removerio/utils"
	"go.uber.org/zap"
)

const keyPrefix = "removal:"

// ResultStore 背景去除结果缓存，未命中时返回 nil, nil
type ResultStore interface {
	Get(ctx context.Context, key string) (*model.RemovalResult, error)
	Set(ctx context.Context, key string, result *model.RemovalResult) error
	Close() error
}

// RedisStore 基于 redis 的共享缓存
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get 从缓存获取结果
func (s *RedisStore) Get(ctx context.Context, key string) (*model.RemovalResult, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	return decodeResult(key, data)
}

// Set 写入缓存
func (s *RedisStore) Set(ctx context.Context, key string, result *model.RemovalResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore 进程内缓存，redis 不可用时使用
type MemoryStore struct {
	cache *cache.Cache[[]byte]
	ristr *ristretto.Cache
	ttl   time.Duration
}

func NewMemoryStore(cfg *config.CacheConfig) (*MemoryStore, error) {
	maxCost := cfg.MemoryMaxCost
	if maxCost <= 0 {
		maxCost = 256 << 20
	}

	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)

	return &MemoryStore{
		cache: cache.New[[]byte](ristrettoStore),
		ristr: ristrettoCache,
		ttl:   cfg.TTL,
	}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*model.RemovalResult, error) {
	data, err := s.cache.Get(ctx, keyPrefix+key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return decodeResult(key, data)
}

func (s *MemoryStore) Set(ctx context.Context, key string, result *model.RemovalResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	if err := s.cache.Set(ctx, keyPrefix+key, data,
		store.WithCost(int64(len(data))),
		store.WithExpiration(s.ttl),
	); err != nil {
		return err
	}
	s.ristr.Wait()
	return nil
}

func (s *MemoryStore) Close() error {
	s.ristr.Close()
	return nil
}

// nopStore cache.driver=none
type nopStore struct{}

func (nopStore) Get(context.Context, string) (*model.RemovalResult, error) {
	return nil, nil
}

func (nopStore) Set(context.Context, string, *model.RemovalResult) error {
	return nil
}

func (nopStore) Close() error {
	return nil
}

// NewResultStore 按配置创建缓存；redis 不可达时退回进程内缓存
func NewResultStore(ctx context.Context, cfg *config.Config) (ResultStore, error) {
	switch cfg.Cache.Driver {
	case config.CacheNone:
		return nopStore{}, nil
	case config.CacheMemory:
		return NewMemoryStore(&cfg.Cache)
	}

	redisStore := NewRedisStore(&cfg.Redis)
	if err := redisStore.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, using in-memory cache", zap.Error(err))
		_ = redisStore.Close()
		return NewMemoryStore(&cfg.Cache)
	}

	utils.Logger.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
	return redisStore, nil
}

func isNotFound(err error) bool {
	var ptr *store.NotFound
	var val store.NotFound
	return errors.As(err, &ptr) || errors.As(err, &val)
}

func decodeResult(key string, data []byte) (*model.RemovalResult, error) {
	var result model.RemovalResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal removal result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}
