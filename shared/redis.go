package shared

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

type CacheClient struct {
	CacheConfig *CacheConfig
	rdClient    *redis.Client
}

type CacheConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	DB       int
}

// Return the default configuration for Redis
func RedisDefaultConfig() *CacheConfig {
	return &CacheConfig{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     os.Getenv("REDIS_PORT"),
		Username: os.Getenv("REDIS_USERNAME"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}
}

func NewCacheClient(config *CacheConfig) *CacheClient {
	return &CacheClient{
		CacheConfig: config,
	}
}

// Connect to the Redis server
// Return error if connection failed
func (c *CacheClient) Connect() error {
	c.rdClient = redis.NewClient(&redis.Options{
		Addr:     c.CacheConfig.Host + ":" + c.CacheConfig.Port,
		Username: c.CacheConfig.Username,
		Password: c.CacheConfig.Password,
		DB:       c.CacheConfig.DB,
	})

	_, err := c.rdClient.Ping(context.Background()).Result()
	if err != nil {
		return err
	}

	return nil
}

// Close the connection to the Redis server
func (c *CacheClient) Close() {
	c.rdClient.Close()
}

// Get the value of key. A missing key is not an error: the second return
// value reports whether the key exists.
func (c *CacheClient) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set key to hold the string value. Any previous time to live associated
// with the key is discarded on successful SET operation. A ttl of 0 means
// the key never expires.
func (c *CacheClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.rdClient.Set(ctx, key, value, ttl).Err()
}

// Del removes the given keys. Missing keys are ignored.
func (c *CacheClient) Del(ctx context.Context, keys ...string) error {
	return c.rdClient.Del(ctx, keys...).Err()
}

// IncrBy atomically adds delta to the integer stored at key, creating the
// key at zero when absent. Returns the value after the increment.
func (c *CacheClient) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.rdClient.IncrBy(ctx, key, delta).Result()
}

// GetDel atomically reads and removes key, so two concurrent claimers can
// never both observe the same value.
func (c *CacheClient) GetDel(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdClient.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Keys lists the keys matching pattern using SCAN, never the blocking KEYS
// command.
func (c *CacheClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return keys, err
	}
	return keys, nil
}
