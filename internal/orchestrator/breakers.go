package orchestrator

import (
	"sync"

	"github.com/omniagent/agentpaycore/internal/obsmetrics"
	"github.com/omniagent/agentpaycore/internal/resilience"
	"github.com/omniagent/agentpaycore/internal/storage"
)

// BreakerSet lazily constructs and caches one resilience.Breaker per
// service name, all sharing the same storage backend and options. Its
// BreakerFor method satisfies the BreakerFor type so it can be passed
// directly into Config.
type BreakerSet struct {
	mu      sync.Mutex
	store   storage.Backend
	metrics *obsmetrics.Registry
	opts    []resilience.Option
	byName  map[string]*resilience.Breaker
}

// NewBreakerSet constructs a BreakerSet over store. opts are applied to
// every breaker it creates.
func NewBreakerSet(store storage.Backend, metrics *obsmetrics.Registry, opts ...resilience.Option) *BreakerSet {
	return &BreakerSet{
		store:   store,
		metrics: metrics,
		opts:    opts,
		byName:  make(map[string]*resilience.Breaker),
	}
}

// BreakerFor returns the breaker for service, creating it on first use.
func (s *BreakerSet) BreakerFor(service string) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.byName[service]; ok {
		return b
	}
	opts := s.opts
	if s.metrics != nil {
		opts = append(append([]resilience.Option(nil), opts...), resilience.WithMetrics(s.metrics))
	}
	b := resilience.NewBreaker(service, s.store, opts...)
	s.byName[service] = b
	return b
}
