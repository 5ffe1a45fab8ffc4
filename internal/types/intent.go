package types

import (
	"time"

	"github.com/omniagent/agentpaycore/internal/money"
)

// PaymentIntentStatus is the lifecycle status of a PaymentIntent (spec §3).
type PaymentIntentStatus string

const (
	IntentRequiresConfirmation PaymentIntentStatus = "requires_confirmation"
	IntentProcessing           PaymentIntentStatus = "processing"
	IntentSucceeded            PaymentIntentStatus = "succeeded"
	IntentFailed               PaymentIntentStatus = "failed"
	IntentCancelled            PaymentIntentStatus = "cancelled"
)

// IsTerminal reports whether the intent can no longer transition.
func (s PaymentIntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentFailed, IntentCancelled:
		return true
	default:
		return false
	}
}

// PaymentIntent is a pre-authorized payment with a held reservation pending
// confirmation (spec §3, §4.9). ClientSecret is carried over from the
// original SDK's PaymentIntent.client_secret as an opaque confirmation
// token handed back to the caller alongside the intent.
type PaymentIntent struct {
	ID                 string
	WalletID           string
	WalletSetID        string
	Recipient          string
	Amount             money.Amount
	Currency           string
	Status             PaymentIntentStatus
	ReservedAmount     money.Amount
	CreatedAt          time.Time
	ExpiresAt          time.Time
	Metadata           map[string]any
	ClientSecret       string
	CancelReason       string

	// Purpose, DestinationNetwork, Strategy, and CCTPFastMode are carried
	// over from the PaymentRequest that created this intent, so Confirm can
	// hand the orchestrator the same routing request the caller originally
	// made instead of a same-network-only reconstruction.
	Purpose            string
	DestinationNetwork Network
	Strategy           ResilienceStrategy
	CCTPFastMode       bool
}

// Expired reports whether the intent's expiry has passed as of now.
func (i *PaymentIntent) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
