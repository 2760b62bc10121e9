package credstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// RedisStore keeps credentials in Redis under a key prefix. Used by kiosk
// fleets that share one agent identity across restarts of stateless hosts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, apperrors.NewStorageFailure("exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", apperrors.NewStorageFailure("read", err)
	}
	return value, nil
}

// Set stores the value without expiry; session expiry is tracked inside the record.
func (s *RedisStore) Set(ctx context.Context, key, value string, _ AccessPolicy) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return apperrors.NewStorageFailure("write", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return apperrors.NewStorageFailure("remove", err)
	}
	return nil
}
