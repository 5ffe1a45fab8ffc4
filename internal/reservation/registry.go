// Package reservation tracks amounts held by open payment intents per
// wallet, separate from guard-chain reservations (which are counter based).
// Grounded on the original SDK's ReservationService (intents/reservation.py):
// available balance is balance minus the sum of open reservations for a
// wallet (spec §4.5).
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/storage"
)

const keyPrefix = "reservation:"

var log = obslog.New("reservation")

// Registry is the fund reservation registry.
type Registry struct {
	store storage.Backend
}

// New constructs a Registry over store.
func New(store storage.Backend) *Registry {
	return &Registry{store: store}
}

type record struct {
	WalletID  string    `json:"wallet_id"`
	Amount    string    `json:"amount"`
	IntentID  string    `json:"intent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func key(intentID string) string {
	return keyPrefix + intentID
}

// Reserve records that amount is held against wallet for intentID. A second
// Reserve with the same intentID is idempotent: it does not double-count
// (spec §4.5 contract).
func (r *Registry) Reserve(ctx context.Context, walletID string, amount money.Amount, intentID string) error {
	existing, err := r.store.Get(ctx, key(intentID))
	if err != nil {
		return fmt.Errorf("reservation: get %s: %w", intentID, err)
	}
	if existing != nil {
		return nil
	}

	rec := record{
		WalletID:  walletID,
		Amount:    amount.String(),
		IntentID:  intentID,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("reservation: marshal: %w", err)
	}
	if err := r.store.Put(ctx, key(intentID), data); err != nil {
		return fmt.Errorf("reservation: put: %w", err)
	}
	log.Printf("reserved %s for wallet %s intent=%s", amount, walletID, intentID)
	return nil
}

// Release removes the reservation for intentID. Releasing an unknown ID is
// a no-op (spec §4.5 contract).
func (r *Registry) Release(ctx context.Context, intentID string) error {
	if err := r.store.Delete(ctx, key(intentID)); err != nil {
		return fmt.Errorf("reservation: delete %s: %w", intentID, err)
	}
	log.Printf("released reservation intent=%s", intentID)
	return nil
}

// TotalFor returns the sum of every open reservation for walletID, by
// scanning all reservation records. There is no dedicated index from wallet
// to its reservations because the reservation count per wallet is expected
// to be small (bounded by concurrently open intents).
func (r *Registry) TotalFor(ctx context.Context, walletID string) (money.Amount, error) {
	raw, err := r.store.Scan(ctx, keyPrefix)
	if err != nil {
		return money.Zero, fmt.Errorf("reservation: scan: %w", err)
	}

	total := money.Zero
	for k, v := range raw {
		if !strings.HasPrefix(k, keyPrefix) {
			continue
		}
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			continue
		}
		if rec.WalletID != walletID {
			continue
		}
		amt, err := money.NewFromString(rec.Amount)
		if err != nil {
			continue
		}
		total = total.Add(amt)
	}
	return total, nil
}
