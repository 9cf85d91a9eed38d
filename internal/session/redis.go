package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implementa Store sobre Redis para despliegues con más de una
// instancia.
type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisConfig configura el store de Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis crea un Store sobre Redis y verifica la conexión.
func NewRedis(ctx context.Context, cfg RedisConfig) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sess"
	}
	return &redisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *redisStore) key(sid string) string {
	return r.prefix + ":" + sid
}

func (r *redisStore) Get(ctx context.Context, sid string) (*Data, error) {
	b, err := r.rdb.Get(ctx, r.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *redisStore) Save(ctx context.Context, sid string, d *Data, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(sid), b, ttl).Err()
}

func (r *redisStore) Delete(ctx context.Context, sid string) error {
	return r.rdb.Del(ctx, r.key(sid)).Err()
}
