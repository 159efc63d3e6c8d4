package actionstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore хранит память о наказаниях в Redis, общую для всех копий бота.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisStore{Client: rdb, Prefix: "guardian/action/"}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.Client.Get(ctx, s.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, action string, ttl time.Duration) error {
	return s.Client.Set(ctx, s.Prefix+key, action, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
