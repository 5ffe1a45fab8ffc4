package guard

import (
	"context"
	"sync"
	"testing"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/storage"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewFromString(s)
	if err != nil {
		t.Fatalf("money.NewFromString(%q): %v", s, err)
	}
	return a
}

// TestBudgetGuard_ConcurrentReserve_ExactlyFloorSucceed is the spec-level
// atomicity test: N concurrent reserves of amount a against a daily limit L
// must admit exactly floor(L/a), never more, regardless of arrival order.
func TestBudgetGuard_ConcurrentReserve_ExactlyFloorSucceed(t *testing.T) {
	store := storage.NewMemoryBackend()
	daily := mustAmount(t, "50")
	g, err := NewBudgetGuard("daily-cap", BudgetLimits{Daily: &daily}, ScopeByWallet, store)
	if err != nil {
		t.Fatalf("NewBudgetGuard: %v", err)
	}

	amount := mustAmount(t, "10")
	pc := Context{WalletID: "wallet-1", Amount: amount}

	const n = 10
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Reserve(context.Background(), pc)
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful reserves (floor(50/10)), got %d", succeeded)
	}
}

func TestBudgetGuard_Release_FreesCapacity(t *testing.T) {
	store := storage.NewMemoryBackend()
	daily := mustAmount(t, "10")
	g, err := NewBudgetGuard("daily-cap", BudgetLimits{Daily: &daily}, ScopeByWallet, store)
	if err != nil {
		t.Fatalf("NewBudgetGuard: %v", err)
	}

	pc := Context{WalletID: "wallet-1", Amount: mustAmount(t, "10")}
	ctx := context.Background()

	token, err := g.Reserve(ctx, pc)
	if err != nil {
		t.Fatalf("first reserve should succeed: %v", err)
	}
	if _, err := g.Reserve(ctx, pc); err == nil {
		t.Fatalf("second reserve should be blocked at the daily cap")
	}

	if err := g.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := g.Reserve(ctx, pc); err != nil {
		t.Fatalf("reserve after release should succeed, got %v", err)
	}
}

func TestBudgetGuard_RequiresAtLeastOneLimit(t *testing.T) {
	store := storage.NewMemoryBackend()
	if _, err := NewBudgetGuard("no-limits", BudgetLimits{}, ScopeByWallet, store); err == nil {
		t.Fatalf("expected an error when no limit is configured")
	}
}
