package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/storage"
)

// BudgetGuard enforces up to three windowed spending caps — rolling 24h,
// rolling 1h, and lifetime total — grounded on omniagentpay's
// guards/budget.py, generalized from a read-only check against ledger
// history to an atomic reserve/commit/release over its own counter record.
// Windows are time-based ("last 86,400 seconds"), not calendar-based.
type BudgetGuard struct {
	name        string
	dailyLimit  *money.Amount
	hourlyLimit *money.Amount
	totalLimit  *money.Amount
	scope       ScopeFunc
	store       storage.Backend
}

// BudgetLimits configures the optional caps; a nil pointer means "no cap
// of that kind".
type BudgetLimits struct {
	Daily  *money.Amount
	Hourly *money.Amount
	Total  *money.Amount
}

// NewBudgetGuard constructs a BudgetGuard. At least one limit must be set.
func NewBudgetGuard(name string, limits BudgetLimits, scope ScopeFunc, store storage.Backend) (*BudgetGuard, error) {
	if limits.Daily == nil && limits.Hourly == nil && limits.Total == nil {
		return nil, fmt.Errorf("guard: budget guard %q requires at least one limit", name)
	}
	if scope == nil {
		scope = ScopeByWallet
	}
	return &BudgetGuard{
		name:        name,
		dailyLimit:  limits.Daily,
		hourlyLimit: limits.Hourly,
		totalLimit:  limits.Total,
		scope:       scope,
		store:       store,
	}, nil
}

func (g *BudgetGuard) Name() string { return g.name }

type budgetEntry struct {
	Token     string    `json:"token"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (g *BudgetGuard) key(pc Context) string {
	return fmt.Sprintf("guard:budget:%s:%s", g.name, g.scope(pc))
}

func (g *BudgetGuard) loadEntries(raw []byte) ([]budgetEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []budgetEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("guard: budget corrupt state: %w", err)
	}
	return entries, nil
}

// windowSum returns the sum of entries created within window of now. A
// zero window means "no expiry" (the lifetime total).
func windowSum(entries []budgetEntry, now time.Time, window time.Duration) (money.Amount, error) {
	total := money.Zero
	for _, e := range entries {
		if window > 0 && now.Sub(e.CreatedAt) > window {
			continue
		}
		amt, err := money.NewFromString(e.Amount)
		if err != nil {
			return money.Zero, err
		}
		total = total.Add(amt)
	}
	return total, nil
}

// Check evaluates the limits without reserving anything.
func (g *BudgetGuard) Check(ctx context.Context, pc Context) (Result, error) {
	raw, err := g.store.Get(ctx, g.key(pc))
	if err != nil {
		return Result{}, err
	}
	entries, err := g.loadEntries(raw)
	if err != nil {
		return Result{}, err
	}
	return g.evaluate(entries, pc.Amount, time.Now())
}

func (g *BudgetGuard) evaluate(entries []budgetEntry, amount money.Amount, now time.Time) (Result, error) {
	type window struct {
		label string
		dur   time.Duration
		limit *money.Amount
	}
	windows := []window{
		{"hourly", time.Hour, g.hourlyLimit},
		{"daily", 24 * time.Hour, g.dailyLimit},
		{"total", 0, g.totalLimit},
	}

	for _, w := range windows {
		if w.limit == nil {
			continue
		}
		spent, err := windowSum(entries, now, w.dur)
		if err != nil {
			return Result{}, err
		}
		if spent.Add(amount).GreaterThan(*w.limit) {
			return Result{
				Allowed: false,
				Name:    g.name,
				Reason: fmt.Sprintf("%s budget exceeded: spent %s, limit %s, requested %s",
					w.label, spent, *w.limit, amount),
				Metadata: map[string]any{
					"limit_type": w.label,
					"spent":      spent.String(),
					"limit":      w.limit.String(),
				},
			}, nil
		}
	}
	return Result{Allowed: true, Name: g.name}, nil
}

// Reserve atomically tests all configured limits and records the amount as
// pending spend, using storage.Update so the predicate and the mutation are
// inseparable (spec §4.3 atomicity contract).
func (g *BudgetGuard) Reserve(ctx context.Context, pc Context) (string, error) {
	token := uuid.NewString()
	key := g.key(pc)
	blocked := (*BlockedError)(nil)

	err := g.store.Update(ctx, key, func(current []byte) ([]byte, error) {
		entries, err := g.loadEntries(current)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		res, err := g.evaluate(entries, pc.Amount, now)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			blocked = &BlockedError{GuardName: g.name, Reason: res.Reason}
			return nil, blocked
		}
		entries = append(entries, budgetEntry{Token: token, Amount: pc.Amount.String(), CreatedAt: now})
		return json.Marshal(entries)
	})
	if blocked != nil {
		return "", blocked
	}
	if err != nil {
		return "", fmt.Errorf("guard: budget reserve: %w", err)
	}
	return token, nil
}

// Commit no-ops: Reserve already counted the spend.
func (g *BudgetGuard) Commit(_ context.Context, _ string) error { return nil }

// Release removes the entry Reserve recorded for token.
func (g *BudgetGuard) Release(ctx context.Context, token string) error {
	return g.releaseByToken(ctx, token)
}

func (g *BudgetGuard) releaseByToken(ctx context.Context, token string) error {
	raw, err := g.store.Scan(ctx, fmt.Sprintf("guard:budget:%s:", g.name))
	if err != nil {
		return err
	}
	for key := range raw {
		err := g.store.Update(ctx, key, func(current []byte) ([]byte, error) {
			entries, err := g.loadEntries(current)
			if err != nil {
				return nil, err
			}
			out := entries[:0]
			for _, e := range entries {
				if e.Token != token {
					out = append(out, e)
				}
			}
			return json.Marshal(out)
		})
		if err != nil {
			return fmt.Errorf("guard: budget release: %w", err)
		}
	}
	return nil
}
