package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/storage"
)

func TestBreaker_TripsAtThresholdAndRecovers(t *testing.T) {
	store := storage.NewMemoryBackend()
	b := NewBreaker("custody", store,
		WithFailureThreshold(3),
		WithRecoveryTimeout(10*time.Millisecond),
		WithFailureWindow(time.Minute),
	)
	ctx := context.Background()

	failing := errors.New("upstream boom")
	for i := 0; i < 3; i++ {
		err := b.Call(ctx, func(context.Context) error { return failing })
		if !errors.Is(err, failing) {
			t.Fatalf("attempt %d: expected the underlying error, got %v", i, err)
		}
	}

	state, err := b.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != StateOpen {
		t.Fatalf("expected open after %d failures, got %s", 3, state)
	}

	if err := b.Call(ctx, func(context.Context) error { return nil }); apperr.KindOf(err) != apperr.KindCircuitOpen {
		t.Fatalf("expected circuit_open while tripped, got %v", err)
	}

	time.Sleep(15 * time.Millisecond)

	state, err = b.State(ctx)
	if err != nil {
		t.Fatalf("State after recovery timeout: %v", err)
	}
	if state != StateHalfOpen {
		t.Fatalf("expected half_open after recovery timeout, got %s", state)
	}

	if err := b.Call(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe in half_open should succeed and close: %v", err)
	}
	state, err = b.State(ctx)
	if err != nil {
		t.Fatalf("State after successful probe: %v", err)
	}
	if state != StateClosed {
		t.Fatalf("expected closed after successful half_open probe, got %s", state)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	store := storage.NewMemoryBackend()
	b := NewBreaker("custody", store,
		WithFailureThreshold(1),
		WithRecoveryTimeout(5*time.Millisecond),
	)
	ctx := context.Background()

	failing := errors.New("boom")
	_ = b.Call(ctx, func(context.Context) error { return failing })

	time.Sleep(10 * time.Millisecond)
	state, _ := b.State(ctx)
	if state != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", state)
	}

	_ = b.Call(ctx, func(context.Context) error { return failing })
	state, _ = b.State(ctx)
	if state != StateOpen {
		t.Fatalf("failure during half_open should reopen, got %s", state)
	}
}

func TestBreaker_GradualRecoveryDecrementsFloorZero(t *testing.T) {
	store := storage.NewMemoryBackend()
	b := NewBreaker("custody", store, WithFailureThreshold(5), WithFailureWindow(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.RecordFailure(ctx)
	}
	state, _ := b.State(ctx)
	if state != StateClosed {
		t.Fatalf("3 failures under threshold 5 should stay closed, got %s", state)
	}

	for i := 0; i < 5; i++ {
		if err := b.RecordSuccess(ctx); err != nil {
			t.Fatalf("RecordSuccess: %v", err)
		}
	}
	// Failures should have floored at zero; a further failure alone must
	// not trip a threshold-5 breaker.
	if err := b.RecordFailure(ctx); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	state, _ = b.State(ctx)
	if state != StateClosed {
		t.Fatalf("single failure after floor-zero reset should stay closed, got %s", state)
	}
}
