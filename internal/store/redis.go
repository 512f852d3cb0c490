package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding one field per party.
const DefaultRedisKey = "listenparty:parties"

// Redis keeps snapshots in a single hash.
type Redis struct {
	rdb *redis.Client
	key string
}

// OpenRedis connects to url and checks the connection.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, DefaultRedisKey), nil
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

func (s *Redis) Put(ctx context.Context, id string, doc []byte) error {
	return s.rdb.HSet(ctx, s.key, id, doc).Err()
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	return s.rdb.HDel(ctx, s.key, id).Err()
}

func (s *Redis) ListAll(ctx context.Context) ([][]byte, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, []byte(all[id]))
	}
	return docs, nil
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}
