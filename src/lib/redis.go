package lib

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL. An empty URL returns a nil client.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func PingRedis(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[redis] ping failed: %s\n", err.Error())
		return err
	}
	return nil
}
