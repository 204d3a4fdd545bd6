package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponsePrefix namespaces cached HTTP responses.
const ResponsePrefix = "httpcache:"

type CacheService struct {
	redisClient redis.Cmdable
}

func NewCacheService(redisClient redis.Cmdable) *CacheService {
	return &CacheService{
		redisClient: redisClient,
	}
}

// Get получает значение из кэша. redis.Nil означает промах.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set сохраняет значение в кэш
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redisClient.Set(ctx, key, data, ttl).Err()
}

// Delete удаляет значение из кэша
func (c *CacheService) Delete(ctx context.Context, key string) error {
	return c.redisClient.Del(ctx, key).Err()
}

// DeletePattern удаляет все ключи по паттерну
func (c *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.redisClient.Scan(ctx, 0, pattern, 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.redisClient.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return c.redisClient.Del(ctx, batch...).Err()
	}
	return nil
}

// InvalidateResponses сбрасывает все закэшированные ответы API
func (c *CacheService) InvalidateResponses(ctx context.Context) error {
	return c.DeletePattern(ctx, ResponsePrefix+"*")
}
