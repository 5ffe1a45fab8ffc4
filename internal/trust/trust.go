// Package trust defines the optional pre-flight trust hook the orchestrator
// consults before reserving guard capacity (spec §4.1 step 2). Its internal
// design — identity resolution, reputation aggregation, on-chain registries —
// is explicitly out of scope (spec §1); this package only fixes the contract
// an embedder implements against, grounded on the shape of the original
// SDK's TrustGate.evaluate (trust/gate.py) reduced to its verdict surface.
package trust

import (
	"context"

	"github.com/omniagent/agentpaycore/internal/money"
)

// Verdict is the outcome of a trust evaluation.
type Verdict string

const (
	// VerdictApprove allows the payment to proceed normally.
	VerdictApprove Verdict = "approve"
	// VerdictHold requires human/external confirmation before funds move.
	// The orchestrator treats this the same as needing a payment intent:
	// it creates one in requires-confirmation state and returns it (spec
	// §9 open question, resolved for consistency with the intent system).
	VerdictHold Verdict = "hold"
	// VerdictBlock rejects the payment outright.
	VerdictBlock Verdict = "block"
)

// Result carries a hook's verdict plus enough context to explain it in the
// ledger and to the caller.
type Result struct {
	Verdict Verdict
	Score   float64
	Reason  string
}

// Hook is the capability contract the orchestrator invokes before any guard
// or fund-lock step. An embedder wires in whatever identity/reputation
// system they trust (an ERC-8004 registry, an allowlist, a static policy);
// the core never depends on how the verdict was reached.
type Hook interface {
	Evaluate(ctx context.Context, recipient string, amount money.Amount, walletID string) (Result, error)
}

// NoopHook always approves. It is the default when the orchestrator is
// constructed without a trust hook, or when a request's TrustOverride is
// off.
type NoopHook struct{}

// Evaluate implements Hook.
func (NoopHook) Evaluate(_ context.Context, _ string, _ money.Amount, _ string) (Result, error) {
	return Result{Verdict: VerdictApprove, Reason: "trust hook not configured"}, nil
}
