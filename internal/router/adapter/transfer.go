// Package adapter implements the three concrete protocol adapters — same
// network transfer, HTTP-402, and cross-chain burn/attest/mint — against
// the router.Adapter contract (spec §4.8).
package adapter

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/custody"
	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/types"
)

// TransferPriority is the tie-breaker chosen so a chain-address recipient
// on the wallet's own network is preferred over an unmatched fallback, but
// loses to a more specific cross-chain or HTTP-402 match (spec §4.8).
const TransferPriority = 50

// TransferAdapter delegates same-network wallet-to-wallet transfers to the
// custody capability. Grounded on the transfer path of
// omniclaw/payment/router.py with the custody call generalized to
// custody.Provider.
type TransferAdapter struct {
	provider custody.Provider
	log      *obslog.Logger
}

// NewTransferAdapter constructs a TransferAdapter over provider.
func NewTransferAdapter(provider custody.Provider) *TransferAdapter {
	return &TransferAdapter{provider: provider, log: obslog.New("adapter.transfer")}
}

func (a *TransferAdapter) Method() types.PaymentMethod { return types.MethodTransfer }
func (a *TransferAdapter) Priority() int                { return TransferPriority }

// CanHandle matches a chain-address recipient when the request isn't
// cross-chain. Recognized shapes are 40-hex EVM addresses (with or
// without 0x) and base58 Solana-family addresses; selection is ultimately
// by the wallet's own network tag rather than recipient inspection alone
// (spec §4.8), but an unrecognized shape never matches this adapter.
func (a *TransferAdapter) CanHandle(req router.Request) bool {
	if req.IsCrossChain() {
		return false
	}
	if router.IsURL(req.Recipient) {
		return false
	}
	if req.SourceNetwork.IsSolana() {
		return router.IsSolanaAddress(req.Recipient)
	}
	return router.IsEVMAddress(req.Recipient)
}

// Simulate performs no fund movement: it only confirms the custody
// provider is reachable. The wallet's balance is not read here.
func (a *TransferAdapter) Simulate(ctx context.Context, req router.Request) (router.SimulateResult, error) {
	if err := a.provider.Ping(ctx); err != nil {
		return router.SimulateResult{WouldSucceed: false, Route: types.MethodTransfer, Reason: fmt.Sprintf("custody unreachable: %v", err)}, nil
	}
	return router.SimulateResult{WouldSucceed: true, Route: types.MethodTransfer, EstimatedFee: money.Zero}, nil
}

// Execute calls the custody provider's transfer. Exactly-once semantics
// are delegated to the provider via req.IdempotencyKey.
func (a *TransferAdapter) Execute(ctx context.Context, req router.Request) (types.PaymentResult, error) {
	resp, err := a.provider.Transfer(ctx, custody.TransferRequest{
		WalletID:       req.WalletID,
		Recipient:      req.Recipient,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		a.log.Printf("transfer failed wallet=%s recipient=%s: %v", req.WalletID, req.Recipient, err)
		return types.PaymentResult{}, err
	}
	return types.PaymentResult{
		Success:       true,
		Status:        types.StatusCompleted,
		Method:        types.MethodTransfer,
		ProviderTxID:  resp.ProviderTxID,
		OnChainTxHash: resp.OnChainTxHash,
		Amount:        req.Amount,
		Recipient:     req.Recipient,
	}, nil
}
