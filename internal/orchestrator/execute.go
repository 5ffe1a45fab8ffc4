package orchestrator

import (
	"context"

	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/types"
)

// executeRouted implements steps 6-7: enter the circuit breaker scope for
// the selected adapter's service name, then route and execute per the
// request's resilience strategy (spec §4.7, §4.10).
func (o *Orchestrator) executeRouted(ctx context.Context, entry *types.LedgerEntry, req types.PaymentRequest, adapter router.Adapter, routerReq router.Request) (types.PaymentResult, error) {
	breaker := o.breakerFor(string(adapter.Method()))

	strategy := req.Strategy
	if strategy == "" {
		strategy = types.StrategyRetryThenFail
	}

	var result types.PaymentResult
	attempt := func(ctx context.Context) error {
		res, err := adapter.Execute(ctx, routerReq)
		result = res
		return err
	}

	var callErr error
	switch strategy {
	case types.StrategyFailFast:
		callErr = breaker.Call(ctx, attempt)
	case types.StrategyRetryThenFail, types.StrategyQueueBackground:
		callErr = breaker.Call(ctx, func(ctx context.Context) error {
			return o.retry.Do(ctx, attempt)
		})
	default:
		callErr = breaker.Call(ctx, func(ctx context.Context) error {
			return o.retry.Do(ctx, attempt)
		})
	}

	if callErr != nil {
		return types.PaymentResult{}, callErr
	}
	return result, nil
}
