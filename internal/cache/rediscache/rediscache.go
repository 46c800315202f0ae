package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrConflict: ключ менялся параллельно на всех попытках Update.
var ErrConflict = errors.New("redis update conflict")

const maxUpdateAttempts = 16

// RedisCache хранит сессии, корзины и кэш истории заказов.
type RedisCache struct {
	c      *redis.Client
	prefix string
}

func New(addr string) *RedisCache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), "")
}

// NewWithClient позволяет делить один клиент между кэшем и RateLimiter.
// prefix добавляется ко всем ключам ("storefront:").
func NewWithClient(c *redis.Client, prefix string) *RedisCache {
	return &RedisCache{c: c, prefix: prefix}
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

// Set: ttl 0 означает "без срока".
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	if err := r.c.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// Update делает read-modify-write под WATCH/MULTI: если ключ поменяли между чтением
// и записью, fn вызывается заново на свежем значении. nil от fn удаляет ключ.
func (r *RedisCache) Update(ctx context.Context, key string, ttl time.Duration, fn func(cur []byte, ok bool) ([]byte, error)) error {
	k := r.key(key)
	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.c.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, k).Bytes()
			ok := true
			if errors.Is(err, redis.Nil) {
				cur, ok = nil, false
			} else if err != nil {
				return errors.Wrap(err, "redis get")
			}

			next, err := fn(cur, ok)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if next == nil {
					pipe.Del(ctx, k)
				} else {
					pipe.Set(ctx, k, next, ttl)
				}
				return nil
			})
			return err
		}, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errors.Wrap(ErrConflict, key)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.c.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}
