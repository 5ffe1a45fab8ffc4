// Package custody defines the capability contract the payment core expects
// from the custody provider that actually moves funds (spec §1: out of
// scope, "treated as a capability that moves funds and returns transaction
// identifiers"). Grounded on fiatrails/internal/escrow.Client: a narrow
// interface an embedder implements against whatever wallet infrastructure
// they run.
package custody

import (
	"context"

	"github.com/omniagent/agentpaycore/internal/money"
)

// TransferRequest is a same-network, wallet-to-wallet transfer instruction.
type TransferRequest struct {
	WalletID       string
	Recipient      string
	Amount         money.Amount
	IdempotencyKey string
}

// TransferResponse carries the identifiers the adapter and ledger need.
type TransferResponse struct {
	ProviderTxID  string
	OnChainTxHash string
}

// Provider is the capability set the transfer and cross-chain adapters
// depend on. An embedder supplies the concrete implementation (e.g. backed
// by a custodial wallet API or, as here, a direct EVM contract call).
type Provider interface {
	// Transfer moves funds on the wallet's own network. Exactly-once
	// semantics are delegated to the provider via IdempotencyKey (spec
	// §4.8).
	Transfer(ctx context.Context, req TransferRequest) (TransferResponse, error)

	// Balance returns the wallet's current live balance. Never cached by
	// the orchestrator (spec §5).
	Balance(ctx context.Context, walletID string) (money.Amount, error)

	// NetworkOf returns the network tag associated with walletID.
	NetworkOf(ctx context.Context, walletID string) (string, error)

	// Ping checks connectivity to the provider for health reporting.
	Ping(ctx context.Context) error
}

// CrossChainBurner is the subset of custody capability the cross-chain
// adapter needs on the source network: approving and initiating a burn
// destined for a mint on another chain (spec §4.8 step 1-2).
type CrossChainBurner interface {
	ApproveBurn(ctx context.Context, walletID string, amount money.Amount) error
	DepositForBurn(ctx context.Context, req TransferRequest, destinationDomain uint32, mintRecipient string) (txHash string, err error)
}

// CrossChainMinter is the subset of custody capability the cross-chain
// adapter needs on the destination network: completing the mint once an
// attestation is available (spec §4.8 step 4).
type CrossChainMinter interface {
	ReceiveMessage(ctx context.Context, message, attestation []byte) (txHash string, err error)
}
