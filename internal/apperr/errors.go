// Package apperr defines the stable, machine-readable error kinds the
// payment core returns. Every failure path returns an *Error carrying a Kind
// so callers can branch on behavior (retry, surface, ledger-as-blocked)
// without parsing message text.
package apperr

import "fmt"

// Kind is a stable machine-readable error classification. See spec §7.
type Kind string

const (
	KindConfiguration      Kind = "configuration_error"
	KindValidation         Kind = "validation_error"
	KindWalletNotFound     Kind = "wallet_not_found"
	KindInsufficientFunds  Kind = "insufficient_balance"
	KindWalletBusy         Kind = "wallet_busy"
	KindGuardBlocked       Kind = "guard_blocked"
	KindRoutingFailed      Kind = "routing_failed"
	KindProtocolError      Kind = "protocol_error"
	KindNetworkError       Kind = "network_error"
	KindTimeout            Kind = "timeout"
	KindCircuitOpen        Kind = "circuit_open"
	KindIntentNotFound     Kind = "intent_not_found"
	KindIntentTerminal     Kind = "intent_already_terminal"
	KindIntentExpired      Kind = "intent_expired"
)

// Error is the concrete error type returned by every core operation.
type Error struct {
	Kind    Kind
	Message string

	// GuardName is set only for KindGuardBlocked.
	GuardName string
	// Service is set only for KindCircuitOpen.
	Service string
	// RecoveryAt, unix seconds, is set only for KindCircuitOpen.
	RecoveryAt int64

	Err error
}

func (e *Error) Error() string {
	if e.GuardName != "" {
		return fmt.Sprintf("%s: %s (guard=%s)", e.Kind, e.Message, e.GuardName)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is comparisons against a bare Kind sentinel produced by
// New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a plain *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a plain *Error of the given kind, chaining a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// GuardBlocked builds the guard_blocked error carrying which guard rejected
// the payment and why.
func GuardBlocked(guardName, reason string) *Error {
	return &Error{Kind: KindGuardBlocked, Message: reason, GuardName: guardName}
}

// CircuitOpen builds the circuit_open error carrying the gated service name
// and the unix timestamp at which a probe will next be admitted.
func CircuitOpen(service string, recoveryAt int64) *Error {
	return &Error{
		Kind:       KindCircuitOpen,
		Message:    fmt.Sprintf("circuit open for %s", service),
		Service:    service,
		RecoveryAt: recoveryAt,
	}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Kind
}

// IsTransient reports whether err is classified as a transient upstream
// failure eligible for retry under the policy in spec §4.7: timeouts,
// connection failures, 5xx responses, explicit rate limiting. Guard blocks,
// validation errors, insufficient balance, and circuit-open are never
// transient.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetworkError, KindTimeout:
		return true
	default:
		return false
	}
}
