// Package router classifies a payment request and selects exactly one
// adapter to carry it out, grounded on omniclaw/payment/router.py's
// priority-sorted adapter list generalized to the reserve-token pipeline
// the orchestrator drives (spec §4.8).
package router

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/types"
)

// SimulateResult is an adapter's non-mutating prediction of what Execute
// would do.
type SimulateResult struct {
	WouldSucceed bool
	Route        types.PaymentMethod
	EstimatedFee money.Amount
	Reason       string
}

// Request is everything an adapter needs to decide whether it applies and,
// if so, to carry out or simulate the payment.
type Request struct {
	WalletID           string
	SourceNetwork      types.Network
	Recipient          string
	Amount             money.Amount
	DestinationNetwork types.Network
	Purpose            string
	IdempotencyKey     string
	FeeHint            types.FeeHint
	Metadata           map[string]any
	CCTPFastMode       bool
	Timeout            float64 // seconds; 0 means adapter default
}

// IsCrossChain reports whether the request names a destination network
// different from the source.
func (r Request) IsCrossChain() bool {
	return r.DestinationNetwork != "" && r.DestinationNetwork != r.SourceNetwork
}

// Adapter is the uniform protocol contract (spec §4.8).
type Adapter interface {
	Method() types.PaymentMethod
	// Priority is a tie-breaker, not a preference ranking: lower does not
	// mean "tried first unconditionally" when CanHandle disagrees; the
	// router still only selects an adapter whose CanHandle returns true.
	Priority() int
	CanHandle(req Request) bool
	Simulate(ctx context.Context, req Request) (SimulateResult, error)
	Execute(ctx context.Context, req Request) (types.PaymentResult, error)
}

// Router holds the registered adapters and picks exactly one per request.
type Router struct {
	adapters []Adapter
}

// New constructs a Router over the given adapters, sorted by priority.
func New(adapters ...Adapter) *Router {
	r := &Router{}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, keeping the set sorted by ascending priority.
func (r *Router) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
	sort.SliceStable(r.adapters, func(i, j int) bool {
		return r.adapters[i].Priority() < r.adapters[j].Priority()
	})
}

// Select finds the adapter that will handle req. Cross-chain requests win
// regardless of priority or recipient shape (spec §4.8): if
// DestinationNetwork is set and differs from SourceNetwork, only an
// adapter that reports it can handle a cross-chain request is eligible.
func (r *Router) Select(req Request) (Adapter, error) {
	for _, a := range r.adapters {
		if a.CanHandle(req) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("router: no adapter found for recipient %q", req.Recipient)
}

// Execute selects an adapter and runs it.
func (r *Router) Execute(ctx context.Context, req Request) (types.PaymentResult, error) {
	a, err := r.Select(req)
	if err != nil {
		return types.PaymentResult{}, err
	}
	return a.Execute(ctx, req)
}

// Simulate selects an adapter and runs its non-mutating prediction.
func (r *Router) Simulate(ctx context.Context, req Request) (SimulateResult, error) {
	a, err := r.Select(req)
	if err != nil {
		return SimulateResult{WouldSucceed: false, Reason: err.Error()}, nil
	}
	return a.Simulate(ctx, req)
}

// SupportedFormats is a diagnostic describing the recipient shape each
// registered method expects, grounded on router.py's
// get_supported_formats.
func (r *Router) SupportedFormats() map[types.PaymentMethod]string {
	return map[types.PaymentMethod]string{
		types.MethodTransfer:  "blockchain address (0x... for EVM, base58 for Solana)",
		types.MethodX402:      "HTTPS URL (https://api.example.com)",
		types.MethodCrossChain: "destination_network set and different from the wallet's own network",
	}
}

var (
	evmAddressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)
	base58Pattern     = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// IsEVMAddress reports whether recipient is a 40-hex address, with or
// without the 0x prefix.
func IsEVMAddress(recipient string) bool {
	return evmAddressPattern.MatchString(recipient)
}

// IsSolanaAddress reports whether recipient looks like a base58 Solana
// address (32-44 chars, no 0/O/I/l).
func IsSolanaAddress(recipient string) bool {
	return base58Pattern.MatchString(recipient)
}

// IsURL reports whether recipient is an http(s) URL.
func IsURL(recipient string) bool {
	return strings.HasPrefix(recipient, "http://") || strings.HasPrefix(recipient, "https://")
}
