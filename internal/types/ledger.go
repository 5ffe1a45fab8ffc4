package types

import (
	"time"

	"github.com/omniagent/agentpaycore/internal/money"
)

// LedgerEntry is the append-only record of one payment attempt. Immutable on
// creation except for Status and a bounded metadata merge; terminal states
// are write-once (spec §3).
type LedgerEntry struct {
	ID            string
	WalletID      string
	WalletSetID   string
	Recipient     string
	Amount        money.Amount
	Status        PaymentStatus
	Method        PaymentMethod
	ProviderTxID  string
	OnChainTxHash string
	GuardsPassed  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Purpose       string
	Metadata      map[string]any
}

// Clone returns a deep-enough copy for safe mutation by callers that must
// not observe in-place edits to a stored entry.
func (e *LedgerEntry) Clone() *LedgerEntry {
	c := *e
	if e.GuardsPassed != nil {
		c.GuardsPassed = append([]string(nil), e.GuardsPassed...)
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
