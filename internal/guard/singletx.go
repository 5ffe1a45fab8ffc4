package guard

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/money"
)

// SingleTxGuard is stateless: it verifies min <= amount <= max. Grounded on
// omniagentpay/guards/single_tx.py.
type SingleTxGuard struct {
	name string
	min  *money.Amount
	max  *money.Amount
}

// NewSingleTxGuard constructs a SingleTxGuard. Either bound may be nil to
// leave it unconstrained, but at least one must be set.
func NewSingleTxGuard(name string, min, max *money.Amount) (*SingleTxGuard, error) {
	if min == nil && max == nil {
		return nil, fmt.Errorf("guard: single_tx guard %q requires min or max", name)
	}
	return &SingleTxGuard{name: name, min: min, max: max}, nil
}

func (g *SingleTxGuard) Name() string { return g.name }

func (g *SingleTxGuard) Check(_ context.Context, pc Context) (Result, error) {
	if g.max != nil && pc.Amount.GreaterThan(*g.max) {
		return Result{
			Allowed: false,
			Name:    g.name,
			Reason:  fmt.Sprintf("amount %s exceeds max %s", pc.Amount, *g.max),
		}, nil
	}
	if g.min != nil && pc.Amount.LessThan(*g.min) {
		return Result{
			Allowed: false,
			Name:    g.name,
			Reason:  fmt.Sprintf("amount %s is below min %s", pc.Amount, *g.min),
		}, nil
	}
	return Result{Allowed: true, Name: g.name}, nil
}

// Reserve is Check with no side effects: this guard is stateless.
func (g *SingleTxGuard) Reserve(ctx context.Context, pc Context) (string, error) {
	res, err := g.Check(ctx, pc)
	if err != nil {
		return "", err
	}
	if !res.Allowed {
		return "", &BlockedError{GuardName: g.name, Reason: res.Reason}
	}
	return "", nil
}

func (g *SingleTxGuard) Commit(_ context.Context, _ string) error  { return nil }
func (g *SingleTxGuard) Release(_ context.Context, _ string) error { return nil }
