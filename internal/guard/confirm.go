package guard

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/money"
)

// Approver is the external approval capability a ConfirmGuard invokes
// (spec §4.3: "approval is modeled as a capability the embedder injects;
// the core does not prescribe how humans approve").
type Approver interface {
	Approve(ctx context.Context, pc Context) (bool, error)
}

// ConfirmGuard requires external approval above a threshold, or for every
// payment when AlwaysConfirm is set. Grounded on omniclaw/guards/confirm.py.
type ConfirmGuard struct {
	name          string
	approver      Approver
	threshold     *money.Amount
	alwaysConfirm bool
}

// NewConfirmGuard constructs a ConfirmGuard. approver may be nil, in which
// case any payment needing confirmation is blocked outright (spec: "if
// approval returns false or is absent, block").
func NewConfirmGuard(name string, approver Approver, threshold *money.Amount, alwaysConfirm bool) *ConfirmGuard {
	return &ConfirmGuard{name: name, approver: approver, threshold: threshold, alwaysConfirm: alwaysConfirm}
}

func (g *ConfirmGuard) Name() string { return g.name }

func (g *ConfirmGuard) needsConfirmation(amount money.Amount) bool {
	if g.alwaysConfirm {
		return true
	}
	return g.threshold != nil && amount.GreaterThanOrEqual(*g.threshold)
}

func (g *ConfirmGuard) Check(ctx context.Context, pc Context) (Result, error) {
	if !g.needsConfirmation(pc.Amount) {
		return Result{Allowed: true, Name: g.name, Metadata: map[string]any{"confirmation_required": false}}, nil
	}

	if g.approver == nil {
		return Result{
			Allowed:  false,
			Name:     g.name,
			Reason:   "payment requires confirmation but no approver is configured",
			Metadata: map[string]any{"confirmation_required": true, "confirmed": false},
		}, nil
	}

	confirmed, err := g.approver.Approve(ctx, pc)
	if err != nil {
		return Result{
			Allowed:  false,
			Name:     g.name,
			Reason:   fmt.Sprintf("confirmation callback failed: %v", err),
			Metadata: map[string]any{"confirmation_required": true, "error": err.Error()},
		}, nil
	}
	if !confirmed {
		return Result{
			Allowed:  false,
			Name:     g.name,
			Reason:   "payment not confirmed",
			Metadata: map[string]any{"confirmation_required": true, "confirmed": false},
		}, nil
	}
	return Result{Allowed: true, Name: g.name, Metadata: map[string]any{"confirmation_required": true, "confirmed": true}}, nil
}

// Reserve is Check with no side effects: this guard is stateless.
func (g *ConfirmGuard) Reserve(ctx context.Context, pc Context) (string, error) {
	res, err := g.Check(ctx, pc)
	if err != nil {
		return "", err
	}
	if !res.Allowed {
		return "", &BlockedError{GuardName: g.name, Reason: res.Reason}
	}
	return "", nil
}

func (g *ConfirmGuard) Commit(_ context.Context, _ string) error  { return nil }
func (g *ConfirmGuard) Release(_ context.Context, _ string) error { return nil }
