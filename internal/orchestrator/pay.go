package orchestrator

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/guard"
	"github.com/omniagent/agentpaycore/internal/ledger"
	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/trust"
	"github.com/omniagent/agentpaycore/internal/types"
)

// Pay runs the ten-step pipeline (spec §4.10). Failure at any step unwinds
// every prior step's effect before returning.
func (o *Orchestrator) Pay(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	// Step 1: record ledger entry (pending), before any side effect. A
	// confirmed intent already has one (recorded at Create), so finalize
	// that entry instead of starting a second, disconnected one.
	var entry *types.LedgerEntry
	var err error
	if req.ExistingLedgerEntryID != "" {
		entry, err = o.ledger.Get(ctx, req.ExistingLedgerEntryID)
	} else {
		entry, err = o.ledger.Record(ctx, &types.LedgerEntry{
			WalletID:    req.WalletID,
			WalletSetID: req.WalletSetID,
			Recipient:   req.Recipient,
			Amount:      req.Amount,
			Status:      types.StatusPending,
			Purpose:     req.Purpose,
			Metadata:    req.Metadata,
		})
	}
	if err != nil {
		return types.PaymentResult{}, err
	}

	// Step 2: optional trust hook.
	if shouldRunTrustHook(req) {
		verdict, holdResult, err := o.runTrustHook(ctx, entry, req)
		if err != nil {
			return types.PaymentResult{}, err
		}
		if verdict != trust.VerdictApprove {
			return holdResult, nil
		}
	}

	// Step 3: guard_chain.reserve.
	if req.SkipGuards {
		return o.payWithGuards(ctx, entry, req, nil, nil)
	}

	chain := o.guards.ChainFor(req.WalletID, req.WalletSetID)
	tokens, result, err := chain.Reserve(ctx, guardContext(req))
	if err != nil {
		return types.PaymentResult{}, err
	}
	if !result.Allowed {
		o.finalizeBlocked(ctx, entry.ID, result)
		return types.PaymentResult{
			Success:       false,
			Status:        types.StatusBlocked,
			ErrorKind:     string(apperr.KindGuardBlocked),
			ErrorMessage:  result.Reason,
			LedgerEntryID: entry.ID,
		}, nil
	}
	if err := o.ledger.AppendGuardsPassed(ctx, entry.ID, guardNames(tokens)); err != nil {
		o.log.Printf("append guards passed failed for entry %s: %v", entry.ID, err)
	}
	return o.payWithGuards(ctx, entry, req, chain, tokens)
}

func guardNames(tokens []guard.Token) []string {
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		names = append(names, t.GuardName)
	}
	return names
}

func (o *Orchestrator) finalizeBlocked(ctx context.Context, entryID string, result guard.Result) {
	_, err := o.ledger.UpdateStatus(ctx, entryID, types.StatusBlocked, "", ledger.MetadataDelta{
		"blocked_by_guard": result.Name,
		"block_reason":     result.Reason,
	})
	if err != nil {
		o.log.Printf("ledger update to blocked failed for %s: %v", entryID, err)
	}
	o.recordOutcome(types.StatusBlocked)
}

// runTrustHook invokes the trust hook and, on hold, defers to an intent
// instead of failing outright (spec §9 open question): the provisional
// ledger entry from step 1 is marked cancelled in favor of the intent's own
// pending entry.
func (o *Orchestrator) runTrustHook(ctx context.Context, entry *types.LedgerEntry, req types.PaymentRequest) (trust.Verdict, types.PaymentResult, error) {
	res, err := o.trustHook.Evaluate(ctx, req.Recipient, req.Amount, req.WalletID)
	if err != nil {
		return "", types.PaymentResult{}, fmt.Errorf("orchestrator: trust hook: %w", err)
	}

	switch res.Verdict {
	case trust.VerdictApprove:
		return trust.VerdictApprove, types.PaymentResult{}, nil

	case trust.VerdictBlock:
		_, uerr := o.ledger.UpdateStatus(ctx, entry.ID, types.StatusBlocked, "", ledger.MetadataDelta{"block_reason": res.Reason})
		if uerr != nil {
			o.log.Printf("ledger update to blocked failed for %s: %v", entry.ID, uerr)
		}
		o.recordOutcome(types.StatusBlocked)
		return trust.VerdictBlock, types.PaymentResult{
			Success:       false,
			Status:        types.StatusBlocked,
			ErrorKind:     "trust_blocked",
			ErrorMessage:  res.Reason,
			LedgerEntryID: entry.ID,
		}, nil

	case trust.VerdictHold:
		_, uerr := o.ledger.UpdateStatus(ctx, entry.ID, types.StatusCancelled, "", ledger.MetadataDelta{"superseded_by": "intent"})
		if uerr != nil {
			o.log.Printf("ledger update to cancelled failed for %s: %v", entry.ID, uerr)
		}
		if o.intents == nil {
			return "", types.PaymentResult{}, fmt.Errorf("orchestrator: trust hook returned hold but no intent service is configured")
		}
		in, cerr := o.intents.Create(ctx, req, 0)
		if cerr != nil {
			return "", types.PaymentResult{}, cerr
		}
		return trust.VerdictHold, types.PaymentResult{
			Success:      false,
			Status:       types.StatusPending,
			ErrorKind:    "trust_hold",
			ErrorMessage: res.Reason,
			Metadata: map[string]any{
				"intent_id":     in.ID,
				"client_secret": in.ClientSecret,
			},
		}, nil

	default:
		return "", types.PaymentResult{}, fmt.Errorf("orchestrator: unknown trust verdict %q", res.Verdict)
	}
}

// payWithGuards runs steps 4-10 once the guard chain has already been
// reserved (or skipped). chain/tokens are nil when req.SkipGuards is set.
func (o *Orchestrator) payWithGuards(ctx context.Context, entry *types.LedgerEntry, req types.PaymentRequest, chain *guard.Chain, tokens []guard.Token) (types.PaymentResult, error) {
	releaseGuards := func() {
		if chain != nil {
			if err := chain.Release(ctx, tokens); err != nil {
				o.log.Printf("guard release failed for entry %s: %v", entry.ID, err)
			}
		}
	}

	// Step 4: fund_lock.acquire(wallet).
	lockToken, ok, err := o.lock.Acquire(ctx, req.WalletID)
	if err != nil {
		releaseGuards()
		return types.PaymentResult{}, err
	}
	if !ok {
		releaseGuards()
		return o.fail(ctx, entry.ID, apperr.KindWalletBusy, "wallet lock unavailable after retries")
	}

	// Step 5: available = balance - Σ open reservations.
	available, err := o.computeAvailable(ctx, req.WalletID)
	if err != nil {
		o.releaseLock(ctx, req.WalletID, lockToken)
		releaseGuards()
		return types.PaymentResult{}, err
	}
	if available.LessThan(req.Amount) {
		o.releaseLock(ctx, req.WalletID, lockToken)
		releaseGuards()
		return o.fail(ctx, entry.ID, apperr.KindInsufficientFunds, fmt.Sprintf("available %s < requested %s", available, req.Amount))
	}

	// Select the adapter now so step 6 can enter the right breaker scope.
	sourceNetwork, err := o.resolveSourceNetwork(ctx, req.WalletID)
	if err != nil {
		o.releaseLock(ctx, req.WalletID, lockToken)
		releaseGuards()
		return types.PaymentResult{}, err
	}
	routerReq := routerRequest(req, sourceNetwork)
	adapter, err := o.router.Select(routerReq)
	if err != nil {
		o.releaseLock(ctx, req.WalletID, lockToken)
		releaseGuards()
		return o.fail(ctx, entry.ID, apperr.KindRoutingFailed, err.Error())
	}

	// Steps 6-7: circuit breaker scope + resilience-strategy execution.
	execResult, execErr := o.executeRouted(ctx, entry, req, adapter, routerReq)
	if execErr != nil && apperr.KindOf(execErr) == apperr.KindCircuitOpen && req.Strategy == types.StrategyQueueBackground {
		o.releaseLock(ctx, req.WalletID, lockToken)
		releaseGuards()
		return o.deferToIntent(ctx, entry, req, execErr)
	}

	// Step 8: commit or release guard tokens based on outcome.
	if chain != nil {
		if execErr == nil && execResult.Success {
			if cerr := chain.Commit(ctx, tokens); cerr != nil {
				o.log.Printf("guard commit failed for entry %s: %v", entry.ID, cerr)
			}
		} else {
			releaseGuards()
		}
	}

	// Step 9: ledger terminal update.
	var result types.PaymentResult
	if execErr != nil {
		result = errorResultFor(execErr)
		_, uerr := o.ledger.UpdateStatus(ctx, entry.ID, types.StatusFailed, "", ledger.MetadataDelta{"error": execErr.Error()})
		if uerr != nil {
			o.log.Printf("ledger update to failed failed for %s: %v", entry.ID, uerr)
		}
		o.recordOutcome(types.StatusFailed)
	} else {
		result = execResult
		result.LedgerEntryID = entry.ID
		_, uerr := o.ledger.UpdateStatus(ctx, entry.ID, types.StatusCompleted, execResult.OnChainTxHash, ledger.MetadataDelta{
			"provider_tx_id": execResult.ProviderTxID,
			"method":         string(execResult.Method),
		})
		if uerr != nil {
			o.log.Printf("ledger update to completed failed for %s: %v", entry.ID, uerr)
		}
		o.recordOutcome(types.StatusCompleted)
	}

	// Step 10: release fund lock with the owned token.
	o.releaseLock(ctx, req.WalletID, lockToken)

	result.LedgerEntryID = entry.ID
	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

func (o *Orchestrator) releaseLock(ctx context.Context, walletID, token string) {
	if _, err := o.lock.ReleaseWithKey(ctx, walletID, token); err != nil {
		o.log.Printf("fund lock release failed for wallet %s: %v", walletID, err)
	}
}

// computeAvailable live-reads the wallet's balance and subtracts every open
// intent reservation (spec §4.10 step 5, §5: "never cached inside the
// pipeline").
func (o *Orchestrator) computeAvailable(ctx context.Context, walletID string) (money.Amount, error) {
	balance, err := o.provider.Balance(ctx, walletID)
	if err != nil {
		return money.Zero, fmt.Errorf("orchestrator: read balance for wallet %s: %w", walletID, err)
	}
	reserved, err := o.reservations.TotalFor(ctx, walletID)
	if err != nil {
		return money.Zero, fmt.Errorf("orchestrator: sum reservations for wallet %s: %w", walletID, err)
	}
	return balance.Sub(reserved), nil
}

func (o *Orchestrator) fail(ctx context.Context, entryID string, kind apperr.Kind, detail string) (types.PaymentResult, error) {
	outErr := apperr.New(kind, detail)
	_, uerr := o.ledger.UpdateStatus(ctx, entryID, types.StatusFailed, "", ledger.MetadataDelta{"error": detail, "error_kind": string(kind)})
	if uerr != nil {
		o.log.Printf("ledger update to failed failed for %s: %v", entryID, uerr)
	}
	o.recordOutcome(types.StatusFailed)
	return types.PaymentResult{
		Success:       false,
		Status:        types.StatusFailed,
		ErrorKind:     string(kind),
		ErrorMessage:  detail,
		LedgerEntryID: entryID,
	}, outErr
}

func (o *Orchestrator) deferToIntent(ctx context.Context, entry *types.LedgerEntry, req types.PaymentRequest, causeErr error) (types.PaymentResult, error) {
	if o.intents == nil {
		return o.fail(ctx, entry.ID, apperr.KindCircuitOpen, causeErr.Error())
	}
	_, uerr := o.ledger.UpdateStatus(ctx, entry.ID, types.StatusCancelled, "", ledger.MetadataDelta{"superseded_by": "intent", "deferred_reason": "circuit_open"})
	if uerr != nil {
		o.log.Printf("ledger update to cancelled failed for %s: %v", entry.ID, uerr)
	}
	in, err := o.intents.Create(ctx, req, 0)
	if err != nil {
		return types.PaymentResult{}, err
	}
	o.recordOutcome(types.StatusCancelled)
	return types.PaymentResult{
		Success:      false,
		Status:       types.StatusPending,
		ErrorKind:    "queued_background",
		ErrorMessage: causeErr.Error(),
		Metadata: map[string]any{
			"intent_id":     in.ID,
			"client_secret": in.ClientSecret,
		},
	}, nil
}

func (o *Orchestrator) resolveSourceNetwork(ctx context.Context, walletID string) (types.Network, error) {
	tag, err := o.provider.NetworkOf(ctx, walletID)
	if err != nil {
		return "", fmt.Errorf("orchestrator: resolve network for wallet %s: %w", walletID, err)
	}
	return types.Network(tag), nil
}

// Execute implements intent.Executor, so the intent service can drive the
// pipeline on confirm without importing this package.
func (o *Orchestrator) Execute(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error) {
	return o.Pay(ctx, req)
}
