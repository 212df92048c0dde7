package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// RestaurantCache keeps a TTL record of restaurants the directory has
// confirmed. Only existence is cached; misses and directory failures are
// never cached, so a deleted restaurant ages out within the TTL.
type RestaurantCache struct {
	rdb *redis.Client
}

func NewRestaurantCache(rdb *redis.Client) *RestaurantCache {
	return &RestaurantCache{rdb: rdb}
}

// Known reports whether a positive directory lookup for id is still cached.
// Cache errors read as a miss, so the caller falls through to the directory.
func (c *RestaurantCache) Known(ctx context.Context, id string) bool {
	n, err := c.rdb.Exists(ctx, restaurantKey(id)).Result()
	return err == nil && n > 0
}

func (c *RestaurantCache) Mark(ctx context.Context, id string, ttl time.Duration) error {
	return c.rdb.Set(ctx, restaurantKey(id), "1", ttl).Err()
}

func restaurantKey(id string) string {
	return fmt.Sprintf("restaurant:%s", id)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
