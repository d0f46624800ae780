package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	tabPrefix      = "tab:"
	accessTokenKey = "accessToken"
	userKey        = "user"
)

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) tokenKey() string {
	return tabPrefix + s.tabID + ":" + accessTokenKey
}

func (s *RedisStore) profileKey() string {
	return tabPrefix + s.tabID + ":" + userKey
}

// Save записывает токен и профиль в одной транзакции MULTI/EXEC
func (s *RedisStore) Save(ctx context.Context, token string, profile *Profile) error {
	if token == "" {
		return fmt.Errorf("access token must not be empty")
	}

	var profileData []byte
	if profile != nil {
		data, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		profileData = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), token, s.ttl)
		if profileData != nil {
			pipe.Set(ctx, s.profileKey(), profileData, s.ttl)
		} else {
			pipe.Del(ctx, s.profileKey())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials to Redis: %w", err)
	}

	return nil
}

// SaveToken перезаписывает только токен (после refresh), продлевая жизнь профиля
func (s *RedisStore) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("access token must not be empty")
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), token, s.ttl)
		pipe.Expire(ctx, s.profileKey(), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save access token to Redis: %w", err)
	}

	return nil
}

// Read читает оба ключа за один MGET
func (s *RedisStore) Read(ctx context.Context) (Credentials, bool, error) {
	values, err := s.client.MGet(ctx, s.tokenKey(), s.profileKey()).Result()
	if err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials from Redis: %w", err)
	}

	token, _ := values[0].(string)
	if token == "" {
		return Credentials{}, false, nil
	}

	creds := Credentials{AccessToken: token}
	if raw, ok := values[1].(string); ok && raw != "" {
		var profile Profile
		// Профиль только кэш: битые данные просто игнорируем
		if err := json.Unmarshal([]byte(raw), &profile); err == nil {
			creds.Profile = &profile
		}
	}

	return creds, true, nil
}

// Clear удаляет оба ключа. Повторный вызов ничего не меняет
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey(), s.profileKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear credentials in Redis: %w", err)
	}
	return nil
}
