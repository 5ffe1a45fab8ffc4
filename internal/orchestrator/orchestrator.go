// Package orchestrator binds the storage abstraction, audit ledger, guard
// chain, fund lock, reservation registry, circuit breaker, retry policy,
// and router into the ten-step pipeline behind pay/simulate/batch_pay
// (spec §4.10), grounded on omniclaw/core/orchestrator.py's step ordering
// and the teacher repo's habit of composing narrow services behind one
// entry-point type.
package orchestrator

import (
	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/custody"
	"github.com/omniagent/agentpaycore/internal/fundlock"
	"github.com/omniagent/agentpaycore/internal/guard"
	"github.com/omniagent/agentpaycore/internal/intent"
	"github.com/omniagent/agentpaycore/internal/ledger"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/obsmetrics"
	"github.com/omniagent/agentpaycore/internal/reservation"
	"github.com/omniagent/agentpaycore/internal/resilience"
	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/trust"
	"github.com/omniagent/agentpaycore/internal/types"
)

// BreakerFor resolves the circuit breaker guarding the service name an
// adapter executes against. The orchestrator keys breakers by
// router.Adapter.Method() so that, e.g., a custody outage trips the
// transfer breaker without affecting the x402 breaker.
type BreakerFor func(service string) *resilience.Breaker

// Orchestrator is the single entry point for pay/simulate/batch_pay.
type Orchestrator struct {
	ledger       *ledger.Ledger
	guards       *guard.Registry
	lock         *fundlock.Lock
	reservations *reservation.Registry
	router       *router.Router
	provider     custody.Provider
	trustHook    trust.Hook
	breakerFor   BreakerFor
	retry        *resilience.RetryPolicy
	intents      *intent.Service
	metrics      *obsmetrics.Registry
	log          *obslog.Logger
}

// Config wires every collaborator the pipeline needs. TrustHook, Metrics,
// Retry and Intents are optional: a nil TrustHook approves every payment, a
// nil Retry uses resilience.DefaultRetryPolicy, and without Intents a hold
// verdict returns an error and a queue_background deferral fails as
// circuit_open. Every other field is required.
type Config struct {
	Ledger       *ledger.Ledger
	Guards       *guard.Registry
	Lock         *fundlock.Lock
	Reservations *reservation.Registry
	Router       *router.Router
	Provider     custody.Provider
	TrustHook    trust.Hook
	BreakerFor   BreakerFor
	Retry        *resilience.RetryPolicy
	Intents      *intent.Service
	Metrics      *obsmetrics.Registry
}

// New constructs an Orchestrator and wires it as cfg.Intents' Executor, so
// intent.Service.Confirm can invoke the pipeline without the intent
// package importing this one.
func New(cfg Config) *Orchestrator {
	trustHook := cfg.TrustHook
	if trustHook == nil {
		trustHook = trust.NoopHook{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = resilience.DefaultRetryPolicy()
	}

	o := &Orchestrator{
		ledger:       cfg.Ledger,
		guards:       cfg.Guards,
		lock:         cfg.Lock,
		reservations: cfg.Reservations,
		router:       cfg.Router,
		provider:     cfg.Provider,
		trustHook:    trustHook,
		breakerFor:   cfg.BreakerFor,
		retry:        retry,
		intents:      cfg.Intents,
		metrics:      cfg.Metrics,
		log:          obslog.New("orchestrator"),
	}
	if cfg.Intents != nil {
		cfg.Intents.SetExecutor(o)
	}
	return o
}

func (o *Orchestrator) recordOutcome(status types.PaymentStatus) {
	if o.metrics != nil {
		o.metrics.PaymentOutcomes.WithLabelValues(string(status)).Inc()
	}
}

func routerRequest(req types.PaymentRequest, sourceNetwork types.Network) router.Request {
	return router.Request{
		WalletID:           req.WalletID,
		SourceNetwork:      sourceNetwork,
		Recipient:          req.Recipient,
		Amount:             req.Amount,
		DestinationNetwork: req.DestinationNetwork,
		Purpose:            req.Purpose,
		IdempotencyKey:     req.IdempotencyKey,
		FeeHint:            req.FeeHint,
		Metadata:           req.Metadata,
		CCTPFastMode:       req.CCTPFastMode,
		Timeout:            req.Timeout.Seconds(),
	}
}

func guardContext(req types.PaymentRequest) guard.Context {
	return guard.Context{
		WalletID:    req.WalletID,
		WalletSetID: req.WalletSetID,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Purpose:     req.Purpose,
		Metadata:    req.Metadata,
	}
}

func shouldRunTrustHook(req types.PaymentRequest) bool {
	return req.TrustCheck != types.TrustOff
}

func errorResultFor(err error) types.PaymentResult {
	return types.PaymentResult{
		Success:      false,
		Status:       types.StatusFailed,
		ErrorKind:    string(apperr.KindOf(err)),
		ErrorMessage: err.Error(),
	}
}
