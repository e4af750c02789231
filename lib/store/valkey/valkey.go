package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store keeps rate limit counters in valkey or any other server speaking
// the redis protocol. Replicas pointed at the same server share limits.
type Store struct {
	rdb    *valkey.Client
	prefix string
}

func (s *Store) key(key string) string { return s.prefix + key }

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	switch n {
	case 0:
		return fmt.Errorf("%w: %d key(s) deleted", store.ErrNotFound, n)
	default:
		return nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return []byte(result), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if _, err := s.rdb.Set(ctx, s.key(key), string(value), expiry).Result(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}

// Increment runs INCR and EXPIRE NX in one MULTI block so the window is
// only set when the counter is created.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *valkey.IntCmd

	if _, err := s.rdb.TxPipelined(ctx, func(pipe valkey.Pipeliner) error {
		incr = pipe.Incr(ctx, s.key(key))
		pipe.ExpireNX(ctx, s.key(key), window)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("can't increment %q in valkey: %w", key, err)
	}

	return incr.Val(), nil
}
