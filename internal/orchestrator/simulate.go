package orchestrator

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/trust"
	"github.com/omniagent/agentpaycore/internal/types"
)

// Simulate runs steps 2, 3 (as a read-only check), 5, and the chosen
// adapter's Simulate. It never acquires the fund lock or mutates any
// counter (spec §4.10).
func (o *Orchestrator) Simulate(ctx context.Context, req types.PaymentRequest) (types.SimulationResult, error) {
	if shouldRunTrustHook(req) {
		res, err := o.trustHook.Evaluate(ctx, req.Recipient, req.Amount, req.WalletID)
		if err != nil {
			return types.SimulationResult{}, fmt.Errorf("orchestrator: trust hook: %w", err)
		}
		if res.Verdict == trust.VerdictBlock {
			return types.SimulationResult{WouldSucceed: false, Reason: "trust hook would block: " + res.Reason}, nil
		}
	}

	var guardsPass, guardsFail []string
	guardReason := ""
	if !req.SkipGuards {
		chain := o.guards.ChainFor(req.WalletID, req.WalletSetID)
		result, passed, err := chain.Check(ctx, guardContext(req))
		if err != nil {
			return types.SimulationResult{}, err
		}
		guardsPass = passed
		if !result.Allowed {
			guardsFail = []string{result.Name}
			guardReason = fmt.Sprintf("guard %s would block: %s", result.Name, result.Reason)
		}
	}

	available, err := o.computeAvailable(ctx, req.WalletID)
	if err != nil {
		return types.SimulationResult{}, err
	}
	insufficientReason := ""
	if available.LessThan(req.Amount) {
		insufficientReason = fmt.Sprintf("available %s < requested %s", available, req.Amount)
	}

	sourceNetwork, err := o.resolveSourceNetwork(ctx, req.WalletID)
	if err != nil {
		return types.SimulationResult{}, err
	}
	routerReq := routerRequest(req, sourceNetwork)
	simResult, err := o.router.Simulate(ctx, routerReq)
	if err != nil {
		return types.SimulationResult{}, err
	}

	out := types.SimulationResult{
		WouldSucceed:    guardReason == "" && insufficientReason == "" && simResult.WouldSucceed,
		Route:           simResult.Route,
		EstimatedFee:    simResult.EstimatedFee,
		GuardsWouldPass: guardsPass,
		GuardsWouldFail: guardsFail,
	}
	switch {
	case guardReason != "":
		out.Reason = guardReason
	case insufficientReason != "":
		out.Reason = insufficientReason
	default:
		out.Reason = simResult.Reason
	}
	return out, nil
}
