package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/domain"
)

// RedisStore implements domain.SessionStore on Redis. Sessions carry no
// TTL; they live until logout or until the provider invalidates the
// credential upstream.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new [RedisStore] instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// redisKey returns the Redis key for a given token.
func (s *RedisStore) redisKey(token string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, token)
}

// Put stores the token-to-credential mapping.
func (s *RedisStore) Put(ctx context.Context, token, credential string) error {
	if err := s.client.Set(ctx, s.redisKey(token), credential, 0).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}

	return nil
}

// Get returns the credential for token, or domain.ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, token string) (string, error) {
	value, err := s.client.Get(ctx, s.redisKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session from Redis: %w", err)
	}

	return value, nil
}

// Remove deletes the session. Deleting an absent token is a no-op.
func (s *RedisStore) Remove(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.redisKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}

	return nil
}

// Count returns the number of stored sessions.
func (s *RedisStore) Count(ctx context.Context) int {
	pattern := s.redisKey("*")
	var count int64
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Error().Err(err).Msg("error scanning session keys in Redis")
			break
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return int(count)
}

// Close closes the Redis client.
func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}

var _ domain.SessionStore = (*RedisStore)(nil)
