package fundlock

import (
	"context"
	"testing"
	"time"

	"github.com/omniagent/agentpaycore/internal/storage"
)

func TestLock_AcquireExcludesConcurrentHolder(t *testing.T) {
	store := storage.NewMemoryBackend()
	l := New(store, WithTTL(time.Second), WithRetries(0), WithBackoff(time.Millisecond))
	ctx := context.Background()

	token, ok, err := l.Acquire(ctx, "wallet-1")
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}

	_, ok, err = l.Acquire(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("second acquire of an already-held wallet lock should fail")
	}

	released, err := l.ReleaseWithKey(ctx, "wallet-1", token)
	if err != nil || !released {
		t.Fatalf("release with correct token should succeed: released=%v err=%v", released, err)
	}

	_, ok, err = l.Acquire(ctx, "wallet-1")
	if err != nil || !ok {
		t.Fatalf("acquire after release should succeed: ok=%v err=%v", ok, err)
	}
}

func TestLock_ReleaseWithWrongTokenFails(t *testing.T) {
	store := storage.NewMemoryBackend()
	l := New(store, WithTTL(time.Second))
	ctx := context.Background()

	_, ok, err := l.Acquire(ctx, "wallet-2")
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	released, err := l.ReleaseWithKey(ctx, "wallet-2", "not-the-real-token")
	if err != nil {
		t.Fatalf("ReleaseWithKey: %v", err)
	}
	if released {
		t.Fatalf("releasing with a mismatched token must not release a lock owned by someone else")
	}
}

func TestLock_DifferentWalletsDoNotContend(t *testing.T) {
	store := storage.NewMemoryBackend()
	l := New(store, WithTTL(time.Second))
	ctx := context.Background()

	if _, ok, err := l.Acquire(ctx, "wallet-a"); err != nil || !ok {
		t.Fatalf("acquire wallet-a: ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.Acquire(ctx, "wallet-b"); err != nil || !ok {
		t.Fatalf("acquire wallet-b should not contend with wallet-a: ok=%v err=%v", ok, err)
	}
}
