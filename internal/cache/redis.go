package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisCache struct {
	Client *redis.Client
}

func NewRedisCache(addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{Client: client}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value under key and false when the key is absent.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// Preferences keeps per-user UI preferences such as the theme.
type Preferences struct {
	cache *RedisCache
}

func NewPreferences(cache *RedisCache) *Preferences {
	return &Preferences{cache: cache}
}

func (p *Preferences) Load(ctx context.Context, key string) (string, bool, error) {
	return p.cache.Get(ctx, "pref:"+key)
}

func (p *Preferences) Save(ctx context.Context, key, value string) error {
	return p.cache.Set(ctx, "pref:"+key, value, 0)
}

// OAuthStates tracks redirect sign-ins that are still in flight.
type OAuthStates struct {
	cache *RedisCache
}

func NewOAuthStates(cache *RedisCache) *OAuthStates {
	return &OAuthStates{cache: cache}
}

func (s *OAuthStates) SaveState(ctx context.Context, state, provider string, ttl time.Duration) error {
	return s.cache.Set(ctx, "oauth:"+state, provider, ttl)
}

func (s *OAuthStates) TakeState(ctx context.Context, state string) (string, error) {
	provider, err := s.cache.Client.GetDel(ctx, "oauth:"+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return provider, err
}
