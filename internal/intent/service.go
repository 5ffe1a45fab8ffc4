// Package intent implements the two-phase payment intent state machine
// (spec §4.9), grounded on the client.intent facade (original SDK's
// intents/intent_facade.py and intents/reservation.py) but reworked as a
// storage-backed service rather than a thin client-side wrapper.
package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/guard"
	"github.com/omniagent/agentpaycore/internal/ledger"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/reservation"
	"github.com/omniagent/agentpaycore/internal/storage"
	"github.com/omniagent/agentpaycore/internal/types"
)

const keyPrefix = "intent:"

// DefaultExpiry is used when a Create call doesn't specify one.
const DefaultExpiry = 15 * time.Minute

// Executor runs the orchestrator pipeline for a confirmed intent. Service
// depends on this interface rather than the orchestrator package directly
// so the orchestrator can own an intent.Service without an import cycle.
type Executor interface {
	Execute(ctx context.Context, req types.PaymentRequest) (types.PaymentResult, error)
}

// Service is the payment intent state machine.
type Service struct {
	store        storage.Backend
	guards       *guard.Registry
	reservations *reservation.Registry
	ledger       *ledger.Ledger
	executor     Executor
	log          *obslog.Logger
}

// New constructs a Service. SetExecutor must be called before Confirm is
// used; Create and Cancel don't need it.
func New(store storage.Backend, guards *guard.Registry, reservations *reservation.Registry, led *ledger.Ledger) *Service {
	return &Service{store: store, guards: guards, reservations: reservations, ledger: led, log: obslog.New("intent")}
}

// SetExecutor wires the pipeline Confirm invokes once an intent transitions
// to processing.
func (s *Service) SetExecutor(e Executor) { s.executor = e }

func key(id string) string { return keyPrefix + id }

func (s *Service) save(ctx context.Context, in *types.PaymentIntent) error {
	data, err := encodeIntent(in)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, key(in.ID), data)
}

// Get loads an intent by id, auto-cancelling it in storage if it has
// expired since being read (spec §4.9: "expiry on read auto-cancels").
func (s *Service) Get(ctx context.Context, id string) (*types.PaymentIntent, error) {
	raw, err := s.store.Get(ctx, key(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, apperr.New(apperr.KindIntentNotFound, fmt.Sprintf("intent %s not found", id))
	}
	in, err := decodeIntent(raw)
	if err != nil {
		return nil, err
	}

	if !in.Status.IsTerminal() && in.Expired(time.Now()) {
		if err := s.expireAndCancel(ctx, in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (s *Service) expireAndCancel(ctx context.Context, in *types.PaymentIntent) error {
	in.Status = types.IntentCancelled
	in.CancelReason = "expired"
	if err := s.reservations.Release(ctx, in.ID); err != nil {
		return err
	}
	if _, err := s.ledger.UpdateStatus(ctx, in.ID, types.StatusCancelled, "", nil); err != nil {
		s.log.Printf("intent %s expired but ledger update failed: %v", in.ID, err)
	}
	return s.save(ctx, in)
}

// Create runs guard checks, reserves funds in the Reservation Registry,
// records a pending ledger entry, and returns the new intent in
// requires-confirmation state (spec §4.9 step "create").
func (s *Service) Create(ctx context.Context, req types.PaymentRequest, expiresIn time.Duration) (*types.PaymentIntent, error) {
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}

	chain := s.guards.ChainFor(req.WalletID, req.WalletSetID)
	pc := guard.Context{
		WalletID:    req.WalletID,
		WalletSetID: req.WalletSetID,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Purpose:     req.Purpose,
		Metadata:    req.Metadata,
	}
	result, _, err := chain.Check(ctx, pc)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return nil, &guard.BlockedError{GuardName: result.Name, Reason: result.Reason}
	}

	now := time.Now()
	in := &types.PaymentIntent{
		ID:                 uuid.NewString(),
		WalletID:           req.WalletID,
		WalletSetID:        req.WalletSetID,
		Recipient:          req.Recipient,
		Amount:             req.Amount,
		Status:             types.IntentRequiresConfirmation,
		ReservedAmount:     req.Amount,
		CreatedAt:          now,
		ExpiresAt:          now.Add(expiresIn),
		Metadata:           req.Metadata,
		ClientSecret:       uuid.NewString(),
		Purpose:            req.Purpose,
		DestinationNetwork: req.DestinationNetwork,
		Strategy:           req.Strategy,
		CCTPFastMode:       req.CCTPFastMode,
	}

	if err := s.reservations.Reserve(ctx, req.WalletID, req.Amount, in.ID); err != nil {
		return nil, err
	}

	entry := &types.LedgerEntry{
		ID:          in.ID,
		WalletID:    req.WalletID,
		WalletSetID: req.WalletSetID,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Status:      types.StatusPending,
		Purpose:     req.Purpose,
		Metadata:    req.Metadata,
	}
	if _, err := s.ledger.Record(ctx, entry); err != nil {
		_ = s.reservations.Release(ctx, in.ID)
		return nil, err
	}

	if err := s.save(ctx, in); err != nil {
		_ = s.reservations.Release(ctx, in.ID)
		return nil, err
	}
	return in, nil
}

// Confirm transitions requires-confirmation -> processing -> (succeeded |
// failed), invoking the orchestrator to actually move funds. Double-
// confirm returns intent_already_terminal; confirming an expired intent
// auto-cancels and returns intent_expired (spec §4.9).
func (s *Service) Confirm(ctx context.Context, id string) (types.PaymentResult, error) {
	in, err := s.Get(ctx, id)
	if err != nil {
		return types.PaymentResult{}, err
	}

	if in.Status == types.IntentCancelled && in.CancelReason == "expired" {
		return types.PaymentResult{}, apperr.New(apperr.KindIntentExpired, fmt.Sprintf("intent %s expired", id))
	}
	if in.Status.IsTerminal() {
		return types.PaymentResult{}, apperr.New(apperr.KindIntentTerminal, fmt.Sprintf("intent %s already %s", id, in.Status))
	}
	if in.Status != types.IntentRequiresConfirmation {
		return types.PaymentResult{}, apperr.New(apperr.KindIntentTerminal, fmt.Sprintf("intent %s is not awaiting confirmation", id))
	}

	in.Status = types.IntentProcessing
	if err := s.save(ctx, in); err != nil {
		return types.PaymentResult{}, err
	}

	if s.executor == nil {
		return types.PaymentResult{}, fmt.Errorf("intent: no executor configured")
	}

	result, execErr := s.executor.Execute(ctx, types.PaymentRequest{
		WalletID:              in.WalletID,
		WalletSetID:           in.WalletSetID,
		Recipient:             in.Recipient,
		Amount:                in.Amount,
		Purpose:               in.Purpose,
		Metadata:              in.Metadata,
		DestinationNetwork:    in.DestinationNetwork,
		Strategy:              in.Strategy,
		CCTPFastMode:          in.CCTPFastMode,
		IdempotencyKey:        in.ID,
		ExistingLedgerEntryID: in.ID,
	})

	if err := s.reservations.Release(ctx, in.ID); err != nil {
		s.log.Printf("intent %s: failed to release reservation: %v", in.ID, err)
	}

	if execErr != nil || !result.Success {
		in.Status = types.IntentFailed
		_ = s.save(ctx, in)
		if execErr != nil {
			return result, execErr
		}
		return result, nil
	}

	in.Status = types.IntentSucceeded
	_ = s.save(ctx, in)
	return result, nil
}

// Cancel transitions requires-confirmation -> cancelled, releasing the
// reservation and updating the ledger.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*types.PaymentIntent, error) {
	in, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != types.IntentRequiresConfirmation {
		return nil, apperr.New(apperr.KindIntentTerminal, fmt.Sprintf("intent %s is not cancellable from %s", id, in.Status))
	}

	if err := s.reservations.Release(ctx, in.ID); err != nil {
		return nil, err
	}
	in.Status = types.IntentCancelled
	in.CancelReason = reason
	if _, err := s.ledger.UpdateStatus(ctx, in.ID, types.StatusCancelled, "", nil); err != nil {
		s.log.Printf("intent %s: ledger update failed: %v", in.ID, err)
	}
	if err := s.save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}
