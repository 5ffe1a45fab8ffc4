// Package guard implements the five concrete payment guards and the chain
// that composes them, grounded on omniagentpay/guards (base.py, manager.py)
// generalized from a check-only predicate to the reserve/commit/release
// token protocol spec §4.3 requires for atomic reservation.
package guard

import (
	"context"
	"fmt"

	"github.com/omniagent/agentpaycore/internal/money"
)

// Context carries everything a guard needs to evaluate a payment.
type Context struct {
	WalletID    string
	WalletSetID string
	Recipient   string
	Amount      money.Amount
	Purpose     string
	Metadata    map[string]any
}

// Result is a guard's verdict, used both for read-only Check and as the
// basis of a Reserve failure.
type Result struct {
	Allowed  bool
	Reason   string
	Name     string
	Metadata map[string]any
}

// Guard is the four-operation contract every concrete guard implements
// (spec §4.3).
type Guard interface {
	Name() string
	// Check is a read-only predicate used for simulation; it never mutates
	// counters.
	Check(ctx context.Context, pc Context) (Result, error)
	// Reserve atomically tests limits and records usage as pending. It
	// returns an opaque token on success.
	Reserve(ctx context.Context, pc Context) (token string, err error)
	// Commit finalizes the pending usage recorded by Reserve. Most guards
	// no-op because Reserve already counted.
	Commit(ctx context.Context, token string) error
	// Release rolls back the pending usage recorded by Reserve.
	Release(ctx context.Context, token string) error
}

// Token pairs a guard name with the token it issued, so a Chain can
// release/commit the exact set Reserve produced.
type Token struct {
	GuardName string
	Value     string
}

// Chain is an ordered composition of guards. Reserve calls guards in order;
// on any failure it releases every token already obtained and propagates
// the block reason (spec §4.3).
type Chain struct {
	guards []Guard
}

// NewChain builds a Chain over guards, evaluated in the given order.
func NewChain(guards ...Guard) *Chain {
	return &Chain{guards: guards}
}

// Add appends a guard to the chain.
func (c *Chain) Add(g Guard) { c.guards = append(c.guards, g) }

// Guards returns the chain's guards in evaluation order.
func (c *Chain) Guards() []Guard { return c.guards }

// Check runs every guard's read-only predicate, stopping at the first
// block. It is the basis of Simulate.
func (c *Chain) Check(ctx context.Context, pc Context) (Result, []string, error) {
	var passed []string
	for _, g := range c.guards {
		res, err := g.Check(ctx, pc)
		if err != nil {
			return Result{}, passed, fmt.Errorf("guard %s: check: %w", g.Name(), err)
		}
		if !res.Allowed {
			return res, passed, nil
		}
		passed = append(passed, g.Name())
	}
	return Result{Allowed: true, Name: "chain"}, passed, nil
}

// Reserve runs every guard's Reserve in order. On the first failure it
// releases every token already obtained, so a blocked payment never leaves
// partial reservations behind.
func (c *Chain) Reserve(ctx context.Context, pc Context) ([]Token, Result, error) {
	var tokens []Token
	for _, g := range c.guards {
		tok, err := g.Reserve(ctx, pc)
		if err != nil {
			c.releaseAll(ctx, tokens)
			var blocked *BlockedError
			if asBlocked(err, &blocked) {
				return nil, Result{Allowed: false, Reason: blocked.Reason, Name: blocked.GuardName}, nil
			}
			return nil, Result{}, err
		}
		tokens = append(tokens, Token{GuardName: g.Name(), Value: tok})
	}
	return tokens, Result{Allowed: true, Name: "chain"}, nil
}

// Commit finalizes every token in the set.
func (c *Chain) Commit(ctx context.Context, tokens []Token) error {
	for _, t := range tokens {
		g := c.find(t.GuardName)
		if g == nil {
			continue
		}
		if err := g.Commit(ctx, t.Value); err != nil {
			return fmt.Errorf("guard %s: commit: %w", t.GuardName, err)
		}
	}
	return nil
}

// Release rolls back every token in the set. Errors are collected but do
// not stop the sweep, so one broken guard cannot strand the others'
// reservations.
func (c *Chain) Release(ctx context.Context, tokens []Token) error {
	var firstErr error
	for _, t := range tokens {
		g := c.find(t.GuardName)
		if g == nil {
			continue
		}
		if err := g.Release(ctx, t.Value); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("guard %s: release: %w", t.GuardName, err)
		}
	}
	return firstErr
}

func (c *Chain) releaseAll(ctx context.Context, tokens []Token) {
	for _, t := range tokens {
		if g := c.find(t.GuardName); g != nil {
			_ = g.Release(ctx, t.Value)
		}
	}
}

func (c *Chain) find(name string) Guard {
	for _, g := range c.guards {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

// BlockedError signals a guard rejected the payment; Chain.Reserve unwraps
// it into a Result rather than a hard error so the orchestrator can record
// a guard_blocked ledger status instead of an unexpected failure.
type BlockedError struct {
	GuardName string
	Reason    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("guard %s blocked: %s", e.GuardName, e.Reason)
}

func asBlocked(err error, target **BlockedError) bool {
	if be, ok := err.(*BlockedError); ok {
		*target = be
		return true
	}
	return false
}
