package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const shardCount = 32

type lockEntry struct {
	token     string
	expiresAt time.Time
}

type shard struct {
	mu    sync.Mutex
	data  map[string][]byte
	locks map[string]lockEntry
}

// MemoryBackend is the process-local implementation of Backend. It achieves
// the race-free contract with striped mutexes, one per shard of the
// keyspace, the direct descendant of the teacher's single
// sync.RWMutex-guarded map (idempotency.MemoryStore) scaled out for
// concurrent guard/lock traffic across many wallets.
type MemoryBackend struct {
	shards [shardCount]*shard
}

// NewMemoryBackend constructs an empty in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{}
	for i := range m.shards {
		m.shards[i] = &shard{
			data:  make(map[string][]byte),
			locks: make(map[string]lockEntry),
		}
	}
	return m
}

func (m *MemoryBackend) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (m *MemoryBackend) Update(_ context.Context, key string, mutate Mutator) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.data[key]
	next, err := mutate(current)
	if err != nil {
		return err
	}
	s.data[key] = next
	return nil
}

func (m *MemoryBackend) AtomicAdd(_ context.Context, key string, delta string, _ time.Duration) (string, error) {
	d, err := decimal.NewFromString(delta)
	if err != nil {
		return "", fmt.Errorf("storage: invalid delta %q: %w", delta, err)
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current := decimal.Zero
	if raw, ok := s.data[key]; ok && len(raw) > 0 {
		current, err = decimal.NewFromString(string(raw))
		if err != nil {
			return "", fmt.Errorf("storage: corrupt counter at %q: %w", key, err)
		}
	}

	next := current.Add(d)
	s.data[key] = []byte(next.String())
	return next.String(), nil
}

func (m *MemoryBackend) AcquireLock(_ context.Context, key string, token string, ttl time.Duration) (bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.locks[key]; ok && now.Before(existing.expiresAt) {
		return false, nil
	}

	s.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryBackend) ReleaseLock(_ context.Context, key string, token string) (bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locks[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(existing.expiresAt) {
		delete(s.locks, key)
		return false, nil
	}
	if existing.token != token {
		return false, nil
	}
	delete(s.locks, key)
	return true, nil
}

func (m *MemoryBackend) Scan(_ context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.data {
			if strings.HasPrefix(k, prefix) {
				out[k] = append([]byte(nil), v...)
			}
		}
		s.mu.Unlock()
	}
	return out, nil
}
