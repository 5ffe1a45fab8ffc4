// Package fundlock implements the per-wallet mutex described in spec §4.4,
// grounded on the original SDK's FundLockService (ledger/lock.py): a
// caller-owned release token stored through storage.Backend's
// AcquireLock/ReleaseLock, with bounded retry and a TTL that bounds the
// blast radius of a crashed holder.
package fundlock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/storage"
)

const (
	// DefaultTTL bounds how long a lock survives an unreleased holder.
	DefaultTTL = 30 * time.Second
	// DefaultRetries is the number of additional acquire attempts after the
	// first fails.
	DefaultRetries = 3
	// DefaultBackoff is the delay between acquire attempts.
	DefaultBackoff = 500 * time.Millisecond
)

var log = obslog.New("fundlock")

func keyFor(walletID string) string {
	return "lock:" + walletID
}

// Lock is the per-wallet mutex service.
type Lock struct {
	store   storage.Backend
	ttl     time.Duration
	retries int
	backoff time.Duration
}

// Option configures a Lock.
type Option func(*Lock)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option { return func(l *Lock) { l.ttl = ttl } }

// WithRetries overrides DefaultRetries.
func WithRetries(n int) Option { return func(l *Lock) { l.retries = n } }

// WithBackoff overrides DefaultBackoff.
func WithBackoff(d time.Duration) Option { return func(l *Lock) { l.backoff = d } }

// New constructs a Lock service over store.
func New(store storage.Backend, opts ...Option) *Lock {
	l := &Lock{
		store:   store,
		ttl:     DefaultTTL,
		retries: DefaultRetries,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire attempts to lock walletID, retrying up to l.retries additional
// times with l.backoff between attempts. Returns the ownership token on
// success, or ("", false) if every attempt found the wallet already locked.
// Acquisition order is not fair; starvation is mitigated only by retry
// count (spec §4.4).
func (l *Lock) Acquire(ctx context.Context, walletID string) (string, bool, error) {
	key := keyFor(walletID)

	for attempt := 0; attempt <= l.retries; attempt++ {
		token := uuid.NewString()
		ok, err := l.store.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return "", false, err
		}
		if ok {
			log.Printf("acquired lock wallet=%s token=%s attempt=%d", walletID, token[:8], attempt)
			return token, true, nil
		}

		if attempt < l.retries {
			log.Printf("wallet %s locked, retrying in %s", walletID, l.backoff)
			select {
			case <-time.After(l.backoff):
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
		}
	}

	log.Printf("failed to acquire lock for wallet %s after %d retries", walletID, l.retries)
	return "", false, nil
}

// ReleaseWithKey releases walletID's lock only if token matches the stored
// token, preventing a late caller from unlocking a lock now owned by
// someone else.
func (l *Lock) ReleaseWithKey(ctx context.Context, walletID, token string) (bool, error) {
	ok, err := l.store.ReleaseLock(ctx, keyFor(walletID), token)
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("released lock wallet=%s", walletID)
	}
	return ok, nil
}
