// Package ledger implements the append-only audit trail of every payment
// attempt and its status transitions (spec §4.2). Entries are written
// before any side effect on external systems so that partial failures can
// be reconstructed from the ledger alone.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/storage"
	"github.com/omniagent/agentpaycore/internal/types"
)

// DefaultQueryLimit caps Query results when the caller doesn't set Limit.
const DefaultQueryLimit = 100

const keyPrefix = "ledger:"

var log = obslog.New("ledger")

// Ledger is the audit ledger backed by storage.Backend.
type Ledger struct {
	store storage.Backend
}

// New constructs a Ledger over the given storage backend.
func New(store storage.Backend) *Ledger {
	return &Ledger{store: store}
}

type wireEntry struct {
	ID            string         `json:"id"`
	WalletID      string         `json:"wallet_id"`
	WalletSetID   string         `json:"wallet_set_id"`
	Recipient     string         `json:"recipient"`
	Amount        string         `json:"amount"`
	Status        string         `json:"status"`
	Method        string         `json:"method"`
	ProviderTxID  string         `json:"provider_tx_id"`
	OnChainTxHash string         `json:"on_chain_tx_hash"`
	GuardsPassed  []string       `json:"guards_passed"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Purpose       string         `json:"purpose"`
	Metadata      map[string]any `json:"metadata"`
}

func toWire(e *types.LedgerEntry) wireEntry {
	return wireEntry{
		ID:            e.ID,
		WalletID:      e.WalletID,
		WalletSetID:   e.WalletSetID,
		Recipient:     e.Recipient,
		Amount:        e.Amount.String(),
		Status:        string(e.Status),
		Method:        string(e.Method),
		ProviderTxID:  e.ProviderTxID,
		OnChainTxHash: e.OnChainTxHash,
		GuardsPassed:  e.GuardsPassed,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Purpose:       e.Purpose,
		Metadata:      e.Metadata,
	}
}

func fromWire(w wireEntry) (*types.LedgerEntry, error) {
	amount, err := money.NewFromString(w.Amount)
	if err != nil {
		return nil, err
	}
	return &types.LedgerEntry{
		ID:            w.ID,
		WalletID:      w.WalletID,
		WalletSetID:   w.WalletSetID,
		Recipient:     w.Recipient,
		Amount:        amount,
		Status:        types.PaymentStatus(w.Status),
		Method:        types.PaymentMethod(w.Method),
		ProviderTxID:  w.ProviderTxID,
		OnChainTxHash: w.OnChainTxHash,
		GuardsPassed:  w.GuardsPassed,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
		Purpose:       w.Purpose,
		Metadata:      w.Metadata,
	}, nil
}

// Record appends a new ledger entry, assigning an ID if one is not already
// set. Called at orchestrator step 1, before any side effect.
func (l *Ledger) Record(ctx context.Context, e *types.LedgerEntry) (*types.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	data, err := json.Marshal(toWire(e))
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal entry: %w", err)
	}
	if err := l.store.Put(ctx, keyPrefix+e.ID, data); err != nil {
		return nil, fmt.Errorf("ledger: put entry: %w", err)
	}
	log.Printf("recorded entry %s status=%s wallet=%s", e.ID, e.Status, e.WalletID)
	return e.Clone(), nil
}

// Get loads a ledger entry by ID.
func (l *Ledger) Get(ctx context.Context, id string) (*types.LedgerEntry, error) {
	raw, err := l.store.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", id, err)
	}
	if raw == nil {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("ledger entry not found: %s", id))
	}
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal %s: %w", id, err)
	}
	return fromWire(w)
}

// MetadataDelta is merged into an entry's Metadata map by UpdateStatus,
// bounded to the keys explicitly supplied (spec §3: "bounded
// metadata-merge").
type MetadataDelta map[string]any

// UpdateStatus transitions a ledger entry's status and optionally records a
// transaction hash and/or merges metadata. Terminal statuses are write-once:
// attempting to update an already-terminal entry is a no-op that returns
// the entry unchanged (spec §3 invariant).
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status types.PaymentStatus, txHash string, delta MetadataDelta) (*types.LedgerEntry, error) {
	var result *types.LedgerEntry

	err := l.store.Update(ctx, keyPrefix+id, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("ledger entry not found: %s", id))
		}
		var w wireEntry
		if err := json.Unmarshal(current, &w); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal %s: %w", id, err)
		}
		entry, err := fromWire(w)
		if err != nil {
			return nil, err
		}

		if entry.Status.IsTerminal() {
			result = entry
			return current, nil
		}

		entry.Status = status
		entry.UpdatedAt = time.Now()
		if txHash != "" {
			entry.OnChainTxHash = txHash
		}
		if delta != nil {
			if entry.Metadata == nil {
				entry.Metadata = make(map[string]any, len(delta))
			}
			for k, v := range delta {
				entry.Metadata[k] = v
			}
		}

		result = entry
		data, err := json.Marshal(toWire(entry))
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal %s: %w", id, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// AppendGuardsPassed records which guards passed for a ledger entry,
// typically once the guard chain's reserve step succeeds.
func (l *Ledger) AppendGuardsPassed(ctx context.Context, id string, guards []string) error {
	return l.store.Update(ctx, keyPrefix+id, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("ledger entry not found: %s", id))
		}
		var w wireEntry
		if err := json.Unmarshal(current, &w); err != nil {
			return nil, err
		}
		w.GuardsPassed = guards
		return json.Marshal(w)
	})
}

// Filter narrows Query results. Zero-value fields are not filtered on.
type Filter struct {
	WalletID    string
	WalletSetID string
	Status      types.PaymentStatus
	Recipient   string
	From        time.Time
	To          time.Time
	Limit       int
}

// Query scans every ledger entry and returns those matching filter, newest
// first, capped at filter.Limit (or DefaultQueryLimit).
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]*types.LedgerEntry, error) {
	raw, err := l.store.Scan(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}

	entries := make([]*types.LedgerEntry, 0, len(raw))
	for _, v := range raw {
		var w wireEntry
		if err := json.Unmarshal(v, &w); err != nil {
			continue
		}
		e, err := fromWire(w)
		if err != nil {
			continue
		}
		if !matches(e, filter) {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func matches(e *types.LedgerEntry, f Filter) bool {
	if f.WalletID != "" && e.WalletID != f.WalletID {
		return false
	}
	if f.WalletSetID != "" && e.WalletSetID != f.WalletSetID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Recipient != "" && e.Recipient != f.Recipient {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
