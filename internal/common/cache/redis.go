package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the configuration for Redis client.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"maxRetries"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PoolSize     int           `yaml:"poolSize"`
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// Lock values identify the holder so that a node never releases a lock it
// lost to expiry.
var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLock implements LockOps using go-redis.
type RedisLock struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisLockWithConfig connects to Redis and verifies the connection.
func NewRedisLockWithConfig(config *RedisConfig) (*RedisLock, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisLockWithClient(client)
}

// NewRedisLockWithClient creates a lock from an existing client.
func NewRedisLockWithClient(client redis.UniversalClient) (*RedisLock, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	return &RedisLock{client: client, owner: uuid.NewString()}, nil
}

func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, r.owner, ttl).Result()
}

func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	return unlockScript.Run(ctx, r.client, []string{key}, r.owner).Err()
}

func (r *RedisLock) ExtendLock(ctx context.Context, key string, ttl time.Duration) error {
	return extendScript.Run(ctx, r.client, []string{key}, r.owner, ttl.Milliseconds()).Err()
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}
