package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emrgen/template/internal/compress"
	"github.com/emrgen/template/internal/model"
	redis "github.com/redis/go-redis/v9"
)

var _ ResolutionCache = (*RedisResolutionCache)(nil)

type RedisResolutionCache struct {
	client  *redis.Client
	encoder compress.Compress
}

func NewRedisResolutionCache(client *redis.Client, encoder compress.Compress) *RedisResolutionCache {
	if encoder == nil {
		encoder = compress.NewNop()
	}

	return &RedisResolutionCache{client: client, encoder: encoder}
}

// NewRedisClient connects with the protocol the cache was written against.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2,
	})
}

func (r *RedisResolutionCache) Get(ctx context.Context, key ResolutionKey) (*model.Revision, error) {
	res := r.client.Get(ctx, key.String())
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	data, err := r.encoder.Decode(buf)
	if err != nil {
		return nil, err
	}

	revision := &model.Revision{}
	if err := json.Unmarshal(data, revision); err != nil {
		return nil, err
	}

	return revision, nil
}

func (r *RedisResolutionCache) Set(ctx context.Context, key ResolutionKey, revision *model.Revision, ttl time.Duration) error {
	marshal, err := revision.MarshalBinary()
	if err != nil {
		return err
	}

	data, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key.String(), data, ttl).Err()
}

func (r *RedisResolutionCache) Delete(ctx context.Context, key ResolutionKey) error {
	return r.client.Del(ctx, key.String()).Err()
}
