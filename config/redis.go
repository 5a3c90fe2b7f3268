package config

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is a global Redis client instance, nil when Redis is not configured.
var RedisClient *redis.Client

func InitRedis() {
	cfg := App().Redis
	addr := firstNonEmpty(os.Getenv("REDIS_ADDR"), cfg.Addr)
	if addr == "" {
		RedisClient = nil
		return
	}
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: firstNonEmpty(os.Getenv("REDIS_PASS"), cfg.Password),
		DB:       cfg.DB,
	})
}

// PingRedis drops RedisClient when the server does not answer.
func PingRedis() bool {
	if RedisClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := RedisClient.Ping(ctx).Err(); err != nil {
		RedisClient = nil
		return false
	}
	return true
}
