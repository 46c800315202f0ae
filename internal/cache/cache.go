package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// BytesCache: то, что нужно сессиям и кэшу истории заказов от key-value хранилища.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Updater: атомарный read-modify-write одного ключа (rediscache.RedisCache).
type Updater interface {
	Update(ctx context.Context, key string, ttl time.Duration, fn func(cur []byte, ok bool) ([]byte, error)) error
}

// Update применяет fn атомарно, если хранилище это умеет, иначе обычным чтением и записью.
func Update(ctx context.Context, c BytesCache, key string, ttl time.Duration, fn func(cur []byte, ok bool) ([]byte, error)) error {
	if u, ok := c.(Updater); ok {
		return u.Update(ctx, key, ttl, fn)
	}
	cur, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}
	if next == nil {
		return c.Del(ctx, key)
	}
	return c.Set(ctx, key, next, ttl)
}

func GetJSON(ctx context.Context, c BytesCache, key string, dst any) (bool, error) {
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, errors.Wrapf(err, "decode cached %s", key)
	}
	return true, nil
}

func SetJSON(ctx context.Context, c BytesCache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return c.Set(ctx, key, b, ttl)
}
