package guard

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/storage"
)

// RateLimitGuard enforces per-minute/hour/day payment **count** caps,
// grounded on omniagentpay/guards/rate_limit.py. Keyed by time bucket so
// that old buckets simply stop being referenced rather than needing
// expiry logic; reserve increments the relevant buckets, release
// decrements them.
type RateLimitGuard struct {
	name      string
	perMinute int
	perHour   int
	perDay    int
	scope     ScopeFunc
	store     storage.Backend
}

// RateLimits configures the optional per-window caps; zero means "no cap".
type RateLimits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// NewRateLimitGuard constructs a RateLimitGuard. At least one cap must be
// positive.
func NewRateLimitGuard(name string, limits RateLimits, scope ScopeFunc, store storage.Backend) (*RateLimitGuard, error) {
	if limits.PerMinute <= 0 && limits.PerHour <= 0 && limits.PerDay <= 0 {
		return nil, fmt.Errorf("guard: rate limit guard %q requires at least one positive cap", name)
	}
	if scope == nil {
		scope = ScopeByWallet
	}
	return &RateLimitGuard{
		name:      name,
		perMinute: limits.PerMinute,
		perHour:   limits.PerHour,
		perDay:    limits.PerDay,
		scope:     scope,
		store:     store,
	}, nil
}

func (g *RateLimitGuard) Name() string { return g.name }

type rateBucket struct {
	label string
	key   string
	cap   int
}

func (g *RateLimitGuard) buckets(pc Context) []rateBucket {
	scope := g.scope(pc)
	var out []rateBucket
	if g.perMinute > 0 {
		out = append(out, rateBucket{"minute", fmt.Sprintf("guard:rate:%s:%s:min:%d", g.name, scope, bucketIndex(minuteBucket)), g.perMinute})
	}
	if g.perHour > 0 {
		out = append(out, rateBucket{"hour", fmt.Sprintf("guard:rate:%s:%s:hour:%d", g.name, scope, bucketIndex(hourBucket)), g.perHour})
	}
	if g.perDay > 0 {
		out = append(out, rateBucket{"day", fmt.Sprintf("guard:rate:%s:%s:day:%d", g.name, scope, bucketIndex(dayBucket)), g.perDay})
	}
	return out
}

// Check reads every configured bucket without incrementing anything.
func (g *RateLimitGuard) Check(ctx context.Context, pc Context) (Result, error) {
	for _, b := range g.buckets(pc) {
		raw, err := g.store.Get(ctx, b.key)
		if err != nil {
			return Result{}, err
		}
		count, err := parseBucketCount(raw)
		if err != nil {
			return Result{}, err
		}
		if count >= b.cap {
			return Result{
				Allowed: false,
				Name:    g.name,
				Reason:  fmt.Sprintf("rate limit exceeded: %d/%d payments per %s", count, b.cap, b.label),
				Metadata: map[string]any{"window": b.label, "count": count, "cap": b.cap},
			}, nil
		}
	}
	return Result{Allowed: true, Name: g.name}, nil
}

// Reserve atomically increments every configured bucket, rolling back any
// already-incremented buckets if a later one is at capacity.
func (g *RateLimitGuard) Reserve(ctx context.Context, pc Context) (string, error) {
	buckets := g.buckets(pc)
	var touched []string

	for _, b := range buckets {
		val, err := g.store.AtomicAdd(ctx, b.key, "1", windowFor(b.label))
		if err != nil {
			g.rollback(ctx, touched)
			return "", fmt.Errorf("guard: rate limit reserve: %w", err)
		}
		touched = append(touched, b.key)
		count, err := parseBucketCount([]byte(val))
		if err != nil {
			g.rollback(ctx, touched)
			return "", err
		}
		if count > b.cap {
			g.rollback(ctx, touched)
			return "", &BlockedError{GuardName: g.name, Reason: fmt.Sprintf("rate limit exceeded: %d/%d payments per %s", count, b.cap, b.label)}
		}
	}

	// The token just carries the bucket keys touched, so Release can find
	// and decrement exactly them without needing the original Context.
	return encodeTokenKeys(touched), nil
}

func (g *RateLimitGuard) rollback(ctx context.Context, keys []string) {
	for _, k := range keys {
		_, _ = g.store.AtomicAdd(ctx, k, "-1", 0)
	}
}

// Commit no-ops: Reserve already counted the payment.
func (g *RateLimitGuard) Commit(_ context.Context, _ string) error { return nil }

// Release decrements every bucket the token names.
func (g *RateLimitGuard) Release(ctx context.Context, token string) error {
	for _, k := range decodeTokenKeys(token) {
		if _, err := g.store.AtomicAdd(ctx, k, "-1", 0); err != nil {
			return fmt.Errorf("guard: rate limit release: %w", err)
		}
	}
	return nil
}
