package types

import (
	"time"

	"github.com/omniagent/agentpaycore/internal/money"
)

// FeeHint is the caller's preference among the custody provider's fee
// tiers, passed through verbatim to the selected adapter.
type FeeHint string

const (
	FeeLow    FeeHint = "low"
	FeeMedium FeeHint = "medium"
	FeeHigh   FeeHint = "high"
)

// TrustOverride is a tri-state override of whether the orchestrator invokes
// the optional trust hook for this request.
type TrustOverride string

const (
	TrustOn   TrustOverride = "on"
	TrustOff  TrustOverride = "off"
	TrustAuto TrustOverride = "auto"
)

// ResilienceStrategy selects how the orchestrator composes the circuit
// breaker and retry policy around adapter execution. See spec §4.7.
type ResilienceStrategy string

const (
	StrategyFailFast       ResilienceStrategy = "fail_fast"
	StrategyRetryThenFail  ResilienceStrategy = "retry_then_fail"
	StrategyQueueBackground ResilienceStrategy = "queue_background"
)

// PaymentMethod identifies which transport adapter executed (or would
// execute) a payment.
type PaymentMethod string

const (
	MethodTransfer  PaymentMethod = "transfer"
	MethodX402      PaymentMethod = "x402"
	MethodCrossChain PaymentMethod = "crosschain"
)

// PaymentStatus is the lifecycle status of a ledger entry. See spec §3.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
	StatusBlocked   PaymentStatus = "blocked"
	StatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether the status is one of the four terminal states.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked, StatusCancelled:
		return true
	default:
		return false
	}
}

// RecipientKind classifies a recipient string at route time. See spec §3.
type RecipientKind string

const (
	RecipientChainAddress RecipientKind = "chain_address"
	RecipientHTTPURL      RecipientKind = "http_url"
	RecipientOther        RecipientKind = "other"
)

// PaymentRequest is the input to Pay, Simulate, and intent creation. See
// spec §3.
type PaymentRequest struct {
	WalletID            string
	WalletSetID         string
	Recipient           string
	Amount              money.Amount
	DestinationNetwork  Network // empty => not a cross-chain intent
	Purpose             string
	Metadata            map[string]any
	IdempotencyKey      string
	FeeHint             FeeHint
	SkipGuards          bool

	// ExistingLedgerEntryID, when set, tells Pay to finalize an already
	// recorded ledger entry (e.g. the one Create wrote) instead of
	// recording a new one at step 1.
	ExistingLedgerEntryID string
	TrustCheck          TrustOverride
	WaitForConfirmation bool
	Timeout             time.Duration
	Strategy            ResilienceStrategy

	// CCTPFastMode requests the fast (~2-5s) attestation path on the
	// cross-chain adapter instead of the ~20-minute standard path.
	CCTPFastMode bool
}

// IsCrossChain reports whether DestinationNetwork is set and therefore the
// router must consider the cross-chain adapter regardless of recipient
// shape (spec §4.8 priority rule).
func (r *PaymentRequest) IsCrossChain(sourceNetwork Network) bool {
	return r.DestinationNetwork != "" && r.DestinationNetwork != sourceNetwork
}

// PaymentResult is the output of Pay and of each adapter's Execute. See
// spec §3.
type PaymentResult struct {
	Success           bool
	Status            PaymentStatus
	Method            PaymentMethod
	ProviderTxID      string
	OnChainTxHash     string
	Amount            money.Amount
	Recipient         string
	GuardsPassed      []string
	ErrorKind         string
	ErrorMessage      string
	LedgerEntryID     string
	Metadata          map[string]any
}

// SimulationResult is the output of Simulate. See spec §6.
type SimulationResult struct {
	WouldSucceed       bool
	Route              PaymentMethod
	EstimatedFee       money.Amount
	Reason             string
	GuardsWouldPass    []string
	GuardsWouldFail    []string
}

// BatchResult aggregates the outcome of BatchPay.
type BatchResult struct {
	TotalCount   int
	SuccessCount int
	FailedCount  int
	Results      []PaymentResult
}
