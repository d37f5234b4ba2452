package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"waitline/internal/config"
	"waitline/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotCache keeps per-shop queue snapshots in redis so reads survive
// process restarts and can be shared between instances.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client: client,
		ttl:    ttl,
	}
}

func snapshotKey(shopID int64) string {
	return fmt.Sprintf("queue:%d", shopID)
}

// Get returns the cached snapshot or (nil, nil) on a miss.
func (r *RedisSnapshotCache) Get(ctx context.Context, shopID int64) (*models.QueueSnapshot, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, snapshotKey(shopID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var snap models.QueueSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisSnapshotCache) Set(ctx context.Context, shopID int64, snap *models.QueueSnapshot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(shopID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

func (r *RedisSnapshotCache) Invalidate(ctx context.Context, shopID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, snapshotKey(shopID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
