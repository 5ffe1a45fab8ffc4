package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/omniagent/agentpaycore/internal/types"
)

// BatchPay runs up to concurrency payments in parallel. Each invocation is
// independent; there is no cross-payment atomicity (spec §4.10).
func (o *Orchestrator) BatchPay(ctx context.Context, requests []types.PaymentRequest, concurrency int) (types.BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]types.PaymentResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			res, err := o.Pay(gctx, req)
			if err != nil && res.ErrorMessage == "" {
				res = errorResultFor(err)
			}
			results[i] = res
			return nil // per-request failures are reported in results, not propagated
		})
	}
	// errgroup.Wait only returns an error from a Go func; ours never
	// returns one, so this always succeeds.
	_ = g.Wait()

	out := types.BatchResult{TotalCount: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailedCount++
		}
	}
	return out, nil
}
