package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"tracklist/config"
)

// RedisClient 是全局Redis客户端
var RedisClient *redis.Client

// ConnectRedis 初始化Redis连接
func ConnectRedis(cfg *config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	return nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// CheckRedis runs a set/get/delete round trip against the connected server.
func CheckRedis(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	const (
		key   = "tracklist:healthcheck"
		value = "ok"
	)

	if err := RedisClient.Set(ctx, key, value, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}

	val, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to get Redis key: %w", err)
	}
	if val != value {
		return fmt.Errorf("unexpected value from Redis: got %s", val)
	}

	if err := RedisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete Redis key: %w", err)
	}
	return nil
}
