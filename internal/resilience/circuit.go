// Package resilience implements the distributed circuit breaker and retry
// policy that protect every call into the custody provider (spec §4.6,
// §4.7). State lives in storage.Backend so the breaker is race-free across
// processes, grounded on the original SDK's CircuitBreaker
// (resilience/circuit.py).
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/obsmetrics"
	"github.com/omniagent/agentpaycore/internal/storage"
)

// State is one of the three circuit breaker states (spec §3).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

const (
	// DefaultFailureThreshold is F in spec §4.6.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is R.
	DefaultRecoveryTimeout = 30 * time.Second
	// DefaultFailureWindow is W, the rolling window failures are counted
	// within before tripping.
	DefaultFailureWindow = 60 * time.Second
)

// Breaker is a per-service circuit breaker.
type Breaker struct {
	service    string
	store      storage.Backend
	threshold  int
	recovery   time.Duration
	window     time.Duration
	metrics    *obsmetrics.Registry
	log        *obslog.Logger
}

// Option configures a Breaker.
type Option func(*Breaker)

func WithFailureThreshold(n int) Option { return func(b *Breaker) { b.threshold = n } }
func WithRecoveryTimeout(d time.Duration) Option { return func(b *Breaker) { b.recovery = d } }
func WithFailureWindow(d time.Duration) Option { return func(b *Breaker) { b.window = d } }
func WithMetrics(m *obsmetrics.Registry) Option { return func(b *Breaker) { b.metrics = m } }

// NewBreaker constructs a Breaker guarding service, backed by store.
func NewBreaker(service string, store storage.Backend, opts ...Option) *Breaker {
	b := &Breaker{
		service:   service,
		store:     store,
		threshold: DefaultFailureThreshold,
		recovery:  DefaultRecoveryTimeout,
		window:    DefaultFailureWindow,
		log:       obslog.New("circuit." + service),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) stateKey() string    { return fmt.Sprintf("circuit:%s:state", b.service) }
func (b *Breaker) failuresKey() string { return fmt.Sprintf("circuit:%s:failures", b.service) }
func (b *Breaker) recoveryKey() string { return fmt.Sprintf("circuit:%s:recovery_ts", b.service) }

// State returns the breaker's current state, transitioning open -> half_open
// as a side effect if the recovery timeout has elapsed.
func (b *Breaker) State(ctx context.Context) (State, error) {
	raw, err := b.store.Get(ctx, b.stateKey())
	if err != nil {
		return "", err
	}
	if raw == nil {
		return StateClosed, nil
	}
	state := State(raw)

	if state == StateOpen {
		recRaw, err := b.store.Get(ctx, b.recoveryKey())
		if err != nil {
			return "", err
		}
		if recRaw == nil {
			return StateHalfOpen, b.setState(ctx, StateHalfOpen)
		}
		recoveryAt, err := time.Parse(time.RFC3339Nano, string(recRaw))
		if err == nil && time.Now().After(recoveryAt) {
			b.log.Printf("recovery timeout passed, entering half_open")
			if err := b.setState(ctx, StateHalfOpen); err != nil {
				return "", err
			}
			return StateHalfOpen, nil
		}
		return StateOpen, nil
	}

	return state, nil
}

func (b *Breaker) setState(ctx context.Context, s State) error {
	if err := b.store.Put(ctx, b.stateKey(), []byte(s)); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.CircuitState.WithLabelValues(b.service).Set(stateGauge(s))
	}
	return nil
}

func stateGauge(s State) float64 {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return -1
	}
}

// IsAvailable reports whether a call may currently be admitted (closed or
// half-open).
func (b *Breaker) IsAvailable(ctx context.Context) (bool, error) {
	state, err := b.State(ctx)
	if err != nil {
		return false, err
	}
	return state != StateOpen, nil
}

// RecoveryAt returns the unix timestamp a caller can expect the breaker to
// admit a probe, for inclusion in a circuit_open error.
func (b *Breaker) RecoveryAt(ctx context.Context) int64 {
	raw, err := b.store.Get(ctx, b.recoveryKey())
	if err != nil || raw == nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return 0
	}
	return t.Unix()
}

// Trip forces the breaker open and sets its recovery time.
func (b *Breaker) Trip(ctx context.Context) error {
	recoveryAt := time.Now().Add(b.recovery)
	if err := b.setState(ctx, StateOpen); err != nil {
		return err
	}
	if err := b.store.Put(ctx, b.recoveryKey(), []byte(recoveryAt.Format(time.RFC3339Nano))); err != nil {
		return err
	}
	b.log.Printf("circuit TRIPPED, blocking requests for %s", b.recovery)
	return nil
}

// Close resets the breaker to closed and clears accumulated failures.
func (b *Breaker) Close(ctx context.Context) error {
	if err := b.setState(ctx, StateClosed); err != nil {
		return err
	}
	if err := b.store.Delete(ctx, b.failuresKey()); err != nil {
		return err
	}
	if err := b.store.Delete(ctx, b.recoveryKey()); err != nil {
		return err
	}
	b.log.Printf("circuit CLOSED, service restored")
	return nil
}

// RecordFailure increments the failure count. A failure while half-open
// trips immediately back to open; a failure while closed that crosses
// threshold within the window trips open.
func (b *Breaker) RecordFailure(ctx context.Context) error {
	state, err := b.State(ctx)
	if err != nil {
		return err
	}

	if state == StateHalfOpen {
		b.log.Printf("failure in half_open, tripping back to open")
		return b.Trip(ctx)
	}

	val, err := b.store.AtomicAdd(ctx, b.failuresKey(), "1", b.window)
	if err != nil {
		return err
	}
	count, err := parseCount(val)
	if err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.CircuitFailures.WithLabelValues(b.service).Inc()
	}
	b.log.Printf("failure recorded, count=%d/%d", count, b.threshold)

	if count >= b.threshold {
		return b.Trip(ctx)
	}
	return nil
}

// RecordSuccess decrements the failure count by one, floored at zero, when
// closed (spec §4.6: gradual recovery rather than an instant reset), or
// closes the breaker outright when half-open.
func (b *Breaker) RecordSuccess(ctx context.Context) error {
	state, err := b.State(ctx)
	if err != nil {
		return err
	}

	switch state {
	case StateHalfOpen:
		b.log.Printf("success in half_open, closing circuit")
		return b.Close(ctx)
	case StateClosed:
		val, err := b.store.AtomicAdd(ctx, b.failuresKey(), "-1", 0)
		if err != nil {
			return err
		}
		count, err := parseCount(val)
		if err != nil {
			return err
		}
		if count <= 0 {
			return b.store.Delete(ctx, b.failuresKey())
		}
	}
	return nil
}

// Call executes fn inside the breaker: rejects immediately with
// circuit_open if unavailable, otherwise records success/failure based on
// fn's outcome.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	available, err := b.IsAvailable(ctx)
	if err != nil {
		return err
	}
	if !available {
		return apperr.CircuitOpen(b.service, b.RecoveryAt(ctx))
	}

	err = fn(ctx)
	if err != nil {
		if recErr := b.RecordFailure(ctx); recErr != nil {
			b.log.Printf("failed to record failure: %v", recErr)
		}
		return err
	}
	if recErr := b.RecordSuccess(ctx); recErr != nil {
		b.log.Printf("failed to record success: %v", recErr)
	}
	return nil
}

func parseCount(s string) (int, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0, fmt.Errorf("resilience: parse counter %q: %w", s, err)
	}
	return int(f), nil
}
