package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenStore определяет интерфейс хранилища токена и профиля одной вкладки
type TokenStore interface {
	Save(ctx context.Context, token string, profile *Profile) error
	SaveToken(ctx context.Context, token string) error
	Read(ctx context.Context) (Credentials, bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// RedisStore реализует TokenStore поверх Redis. Ключи живут не дольше вкладки (ttl)
type RedisStore struct {
	client *redis.Client
	tabID  string
	ttl    time.Duration
}

// NewRedisStore создает новое хранилище Redis для вкладки tabID
func NewRedisStore(ctx context.Context, redisURL, tabID string, ttl time.Duration) (*RedisStore, error) {
	if tabID == "" {
		return nil, fmt.Errorf("tab id is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("tab ttl must be > 0")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Проверка соединения с Redis
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		tabID:  tabID,
		ttl:    ttl,
	}, nil
}

// Client отдает клиент Redis для health-проверок
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
