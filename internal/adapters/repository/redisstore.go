package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/okian/zcalc/internal/domain/model"
)

// HashClient is the subset of the Redis client the store uses.
type HashClient interface {
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisStore reads reference records stored as Redis hashes at
// <prefix>:<attribute>:<agemos>:<sex> with fields L, M and S.
type RedisStore struct {
	client HashClient
	prefix string
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string, opts ...Option) (*RedisStore, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", ErrUnavailable, err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", ErrUnavailable, err)
	}
	return NewRedisStore(client, opts...), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client HashClient, opts ...Option) *RedisStore {
	o := newOptions(opts)
	return &RedisStore{client: client, prefix: o.keyPrefix}
}

// Key returns the hash key of a reference record.
func (s *RedisStore) Key(attribute model.Attribute, key model.ReferenceKey) string {
	return strings.Join([]string{s.prefix, string(attribute), key.AgeMonths, string(key.Sex)}, ":")
}

// Fetch implements Store. A missing hash reads as an empty map.
func (s *RedisStore) Fetch(ctx context.Context, attribute model.Attribute, key model.ReferenceKey) (model.ReferenceParameters, error) {
	fields, err := s.client.HGetAll(ctx, s.Key(attribute, key)).Result()
	if err != nil {
		return model.ReferenceParameters{}, fmt.Errorf("%w: redis lookup: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return model.ReferenceParameters{}, notFound(attribute, key)
	}
	return parseRecord(attribute, key, fields)
}

// Upsert implements Writer. Each row is one HSET; existing extra fields are kept.
func (s *RedisStore) Upsert(ctx context.Context, attribute model.Attribute, rows []Row) (int, error) {
	for i, r := range rows {
		err := s.client.HSet(ctx, s.Key(attribute, r.Key), FieldL, r.L, FieldM, r.M, FieldS, r.S).Err()
		if err != nil {
			return i, fmt.Errorf("hset %s at %s: %w", attribute, r.Key, err)
		}
	}
	return len(rows), nil
}

// Name implements Store.
func (s *RedisStore) Name() string { return DriverRedis }

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }
