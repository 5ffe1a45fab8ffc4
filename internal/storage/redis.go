package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes KEYS[1] only if its current value equals
// ARGV[1], making compare-and-delete atomic server-side. Ported verbatim
// from the original SDK's RedisStorage._RELEASE_LOCK_SCRIPT.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisBackend is the network-backed implementation of Backend, for
// deployments sharing storage across multiple process instances (spec §4.1:
// "a network backend must use a scripted compare-and-delete, not two round
// trips"). Grounded on original_source's storage/redis.py RedisStorage.
type RedisBackend struct {
	client   *redis.Client
	prefix   string
	lockPfx  string
	release  *redis.Script
}

// NewRedisBackend dials a Redis server at url. prefix namespaces every key
// this backend touches, mirroring RedisStorage's self._prefix.
func NewRedisBackend(url, prefix string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if prefix == "" {
		prefix = "agentpay"
	}
	return &RedisBackend{
		client:  client,
		prefix:  prefix,
		lockPfx: prefix + ":locks",
		release: redis.NewScript(releaseLockScript),
	}, nil
}

// Close releases the underlying connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Ping checks connectivity, for health checks and embedder wiring.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Update performs an optimistic-concurrency WATCH/MULTI transaction, the
// compare-and-set loop spec §9 calls for when the backend lacks a purpose
// built scripting path for a given mutation shape.
func (r *RedisBackend) Update(ctx context.Context, key string, mutate Mutator) error {
	rk := r.key(key)
	for {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, rk).Bytes()
			if errors.Is(err, redis.Nil) {
				current = nil
			} else if err != nil {
				return err
			}

			next, err := mutate(current)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, rk, next, 0)
				return nil
			})
			return err
		}, rk)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
}

func (r *RedisBackend) AtomicAdd(ctx context.Context, key string, delta string, window time.Duration) (string, error) {
	rk := r.key(key)
	d, err := strconv.ParseFloat(delta, 64)
	if err != nil {
		return "", fmt.Errorf("storage: invalid delta %q: %w", delta, err)
	}
	val, err := r.client.IncrByFloat(ctx, rk, d).Result()
	if err != nil {
		return "", err
	}
	if window > 0 {
		// Only the creator of a fresh counter sets its expiry; an existing
		// TTL is left alone so a running window isn't extended by every add.
		r.client.ExpireNX(ctx, rk, window)
	}
	return strconv.FormatFloat(val, 'f', -1, 64), nil
}

func (r *RedisBackend) AcquireLock(ctx context.Context, key string, token string, ttl time.Duration) (bool, error) {
	rk := r.lockPfx + ":" + key
	ok, err := r.client.SetNX(ctx, rk, token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisBackend) ReleaseLock(ctx context.Context, key string, token string) (bool, error) {
	rk := r.lockPfx + ":" + key
	res, err := r.release.Run(ctx, r.client, []string{rk}, token).Int64()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

func (r *RedisBackend) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	pattern := r.key(prefix) + "*"
	out := make(map[string][]byte)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		v, err := r.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(fullKey, r.prefix+":")] = v
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
