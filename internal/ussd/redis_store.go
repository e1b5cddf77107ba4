package ussd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 2 * time.Hour

// createdField marks a session hash as initialized so an empty-but-live
// session is distinguishable from a missing one.
const createdField = "__created"

// RedisStore keeps each session as a Redis hash with a TTL refreshed on
// every write, so abandoned sessions age out instead of leaking.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("ussd: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("ussd:session:%s", id)
}

func (s *RedisStore) Create(ctx context.Context, id string) error {
	key := sessionKey(id)
	if err := s.client.HSetNX(ctx, key, createdField, time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
		return fmt.Errorf("ussd: failed to create session: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("ussd: failed to set session expiry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, sessionKey(id), key).Result()
	if err == redis.Nil {
		exists, existsErr := s.client.Exists(ctx, sessionKey(id)).Result()
		if existsErr != nil {
			return "", false, fmt.Errorf("ussd: failed to check session: %w", existsErr)
		}
		if exists == 0 {
			return "", false, ErrNoSession
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ussd: failed to read session field: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, id, key, value string) error {
	sk := sessionKey(id)
	exists, err := s.client.Exists(ctx, sk).Result()
	if err != nil {
		return fmt.Errorf("ussd: failed to check session: %w", err)
	}
	if exists == 0 {
		return ErrNoSession
	}
	if err := s.client.HSet(ctx, sk, key, value).Err(); err != nil {
		return fmt.Errorf("ussd: failed to write session field: %w", err)
	}
	if err := s.client.Expire(ctx, sk, s.ttl).Err(); err != nil {
		return fmt.Errorf("ussd: failed to refresh session expiry: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("ussd: failed to delete session: %w", err)
	}
	return nil
}
