// Package storage defines the uniform key/value + atomic-counter +
// compare-and-release lock surface every stateful component in the payment
// core routes through (spec §4.1). MemoryBackend and RedisBackend are
// interchangeable implementations; everything else in this module only
// ever depends on the Backend interface.
package storage

import (
	"context"
	"time"
)

// Mutator is applied atomically by Update: it receives the current value
// (nil if absent) and returns the new value to store.
type Mutator func(current []byte) ([]byte, error)

// Backend is the storage capability set every guard, lock, reservation,
// circuit breaker, and ledger is built on. All four mutating operations
// (Put indirectly via Update, AtomicAdd, AcquireLock, ReleaseLock) must be
// race-free under concurrent callers (spec §4.1 contract).
type Backend interface {
	// Put stores value under key, last-writer-wins.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the stored value, or (nil, nil) if key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. It is not an error if key is absent.
	Delete(ctx context.Context, key string) error

	// Update atomically applies mutate to the current value of key and
	// stores the result. mutate must be side-effect free beyond its return
	// value: a network backend may invoke it multiple times under
	// optimistic-concurrency retry.
	Update(ctx context.Context, key string, mutate Mutator) error

	// AtomicAdd atomically adds delta to the numeric value stored at key
	// (creating it with value 0 first if absent) and returns the
	// post-addition value as a decimal string. window, if non-zero, is a
	// hint that the counter may be allowed to expire after that duration;
	// backends that support TTLs apply it on first creation only.
	AtomicAdd(ctx context.Context, key string, delta string, window time.Duration) (string, error)

	// AcquireLock stores token under key and succeeds (returns true) iff
	// key is absent or its previously stored lock has expired. ttl bounds
	// the lock's lifetime regardless of whether it is ever released.
	AcquireLock(ctx context.Context, key string, token string, ttl time.Duration) (bool, error)

	// ReleaseLock deletes key iff its stored token equals the presented
	// token, atomically (compare-and-delete). Returns whether the release
	// took effect.
	ReleaseLock(ctx context.Context, key string, token string) (bool, error)

	// Scan returns every key/value pair whose key starts with prefix. Used
	// only for ledger queries; callers are responsible for any pagination
	// policy beyond what the backend itself enforces.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}
