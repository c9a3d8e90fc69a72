package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV keeps the session layout in a single Redis hash so several
// processes can share one session.
type RedisKV struct {
	rdb  *redis.Client
	hash string
}

// NewRedisKV connects to addr and stores keys under the hash named by prefix.
func NewRedisKV(ctx context.Context, addr, password string, db int, prefix string) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "interviewer"
	}
	return &RedisKV{rdb: rdb, hash: prefix + ":session"}, nil
}

func (r *RedisKV) Close() error {
	return r.rdb.Close()
}

// GetMany implements the session KV contract.
func (r *RedisKV) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.hash, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", r.hash, err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Apply writes set and removes del atomically (MULTI/EXEC).
func (r *RedisKV) Apply(ctx context.Context, set map[string]string, del ...string) error {
	if len(set) == 0 && len(del) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(set) > 0 {
			fields := make(map[string]any, len(set))
			for k, v := range set {
				fields[k] = v
			}
			p.HSet(ctx, r.hash, fields)
		}
		if len(del) > 0 {
			p.HDel(ctx, r.hash, del...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s: %w", r.hash, err)
	}
	return nil
}
